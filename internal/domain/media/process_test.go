package media

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFile(t *testing.T, w, h int) File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return File{
		Name:        "test.png",
		ContentType: "image/png",
		Size:        int64(buf.Len()),
		Reader:      &buf,
	}
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestProcessDownscalesLargeImages(t *testing.T) {
	p := &Processor{MaxDimension: 100, Quality: 80}

	out, err := p.Process(pngFile(t, 400, 200))
	require.NoError(t, err)

	bounds := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 100, bounds.Dx())
	assert.Equal(t, 50, bounds.Dy(), "aspect ratio must be preserved")
}

func TestProcessNeverUpscales(t *testing.T) {
	p := &Processor{MaxDimension: 100, Quality: 80}

	out, err := p.Process(pngFile(t, 40, 20))
	require.NoError(t, err)

	bounds := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 40, bounds.Dx())
	assert.Equal(t, 20, bounds.Dy())
}

func TestProcessScalesOnLongestSide(t *testing.T) {
	p := &Processor{MaxDimension: 100, Quality: 80}

	out, err := p.Process(pngFile(t, 200, 400))
	require.NoError(t, err)

	bounds := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 50, bounds.Dx())
	assert.Equal(t, 100, bounds.Dy())
}

// pngHeaderOnly builds the PNG signature plus a valid IHDR chunk declaring
// the given dimensions, with no pixel data. Enough for image.DecodeConfig,
// nowhere near a decodable image, so it proves the dimension gate fires
// before any decode.
func pngHeaderOnly(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], 13)
	buf.Write(length[:])
	buf.WriteString("IHDR")
	buf.Write(ihdr)

	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
	return buf.Bytes()
}

func TestProcessRejectsMislabeledPayload(t *testing.T) {
	p := &Processor{MaxDimension: 100}

	_, err := p.Process(File{
		Name:        "payload.png",
		ContentType: "image/png",
		Size:        20,
		Reader:      strings.NewReader("MZ\x90\x00 not a picture"),
	})
	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestProcessRejectsOversizedDimensions(t *testing.T) {
	p := &Processor{MaxDimension: 1920}

	header := pngHeaderOnly(t, 12000, 12000)
	_, err := p.Process(File{
		Name:        "huge.png",
		ContentType: "image/png",
		Size:        int64(len(header)),
		Reader:      bytes.NewReader(header),
	})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestProcessHonorsConfiguredPixelBudget(t *testing.T) {
	p := &Processor{MaxDimension: 100, MaxPixels: 100}

	_, err := p.Process(pngFile(t, 8, 16))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	p.MaxPixels = 200
	_, err = p.Process(pngFile(t, 8, 16))
	assert.NoError(t, err)
}

func TestProcessRejectsUnsupportedType(t *testing.T) {
	p := &Processor{MaxDimension: 100}

	_, err := p.Process(File{Name: "a.pdf", ContentType: "application/pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCheckBatchLimits(t *testing.T) {
	p := &Processor{MaxFileSize: 1024, MaxFileCount: 2}

	assert.ErrorIs(t, p.CheckBatch(nil), ErrNoFiles)

	big := File{Name: "big.png", ContentType: "image/png", Size: 2048}
	assert.ErrorIs(t, p.CheckBatch([]File{big}), ErrFileTooLarge)

	ok := File{Name: "ok.png", ContentType: "image/png", Size: 100}
	assert.ErrorIs(t, p.CheckBatch([]File{ok, ok, ok}), ErrTooManyFiles)

	bad := File{Name: "a.exe", ContentType: "application/octet-stream", Size: 10}
	assert.ErrorIs(t, p.CheckBatch([]File{bad}), ErrUnsupportedType)

	assert.NoError(t, p.CheckBatch([]File{ok, ok}))
}
