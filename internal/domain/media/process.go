package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

var (
	ErrNoFiles         = errors.New("no files provided")
	ErrTooManyFiles    = errors.New("too many files")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotAnImage      = errors.New("payload is not a valid image")
	ErrImageTooLarge   = errors.New("image dimensions exceed the pixel budget")
)

// imageDecoders maps accepted upload content types to their decoder. Animated
// GIFs lose animation on re-encode; the public site only shows stills.
var imageDecoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/gif":  gif.Decode,
	"image/webp": webp.Decode,
}

// imageSignatures holds the leading magic bytes each accepted content type
// must carry. The declared type is client input; the payload has to back
// it up before any decoder touches the bytes.
var imageSignatures = map[string][]byte{
	"image/jpeg": {0xFF, 0xD8},
	"image/png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"image/gif":  {0x47, 0x49, 0x46, 0x38},
	"image/webp": {0x52, 0x49, 0x46, 0x46},
}

// defaultMaxPixels bounds the decoded size when no budget is configured.
// 50 megapixels admits current phone sensors while keeping the worst-case
// RGBA allocation around 200MB.
const defaultMaxPixels = 50_000_000

// Processor validates image uploads and normalizes them for hosting:
// signature and header checks, decode, downscale to the dimension cap,
// re-encode as JPEG.
type Processor struct {
	MaxFileSize  int64
	MaxFileCount int
	MaxDimension int
	MaxPixels    int64
	Quality      int
}

// CheckBatch enforces count and per-file size limits before any decode work.
func (p *Processor) CheckBatch(files []File) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	if p.MaxFileCount > 0 && len(files) > p.MaxFileCount {
		return fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(files), p.MaxFileCount)
	}
	for _, f := range files {
		if p.MaxFileSize > 0 && f.Size > p.MaxFileSize {
			return fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, f.Name, f.Size)
		}
		if _, ok := imageDecoders[f.ContentType]; !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedType, f.ContentType)
		}
	}
	return nil
}

// Process validates one image, scales it down if it exceeds the dimension
// cap and re-encodes it as JPEG. Images within the cap keep their
// dimensions; nothing is ever upscaled.
func (p *Processor) Process(f File) ([]byte, error) {
	decode, ok := imageDecoders[f.ContentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.ContentType)
	}

	data, err := io.ReadAll(f.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := p.validate(f.Name, f.ContentType, data); err != nil {
		return nil, err
	}

	src, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.Name, err)
	}

	src = p.scale(src)

	quality := p.Quality
	if quality <= 0 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f.Name, err)
	}
	return buf.Bytes(), nil
}

// validate rejects payloads whose magic bytes contradict the declared
// content type, then reads only the image header to enforce the pixel
// budget. Both gates run before the full decode allocates anything.
func (p *Processor) validate(name, contentType string, data []byte) error {
	sig := imageSignatures[contentType]
	if len(data) < len(sig) || !bytes.Equal(data[:len(sig)], sig) {
		return fmt.Errorf("%w: %s does not match %s", ErrNotAnImage, name, contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotAnImage, name)
	}

	budget := p.MaxPixels
	if budget <= 0 {
		budget = defaultMaxPixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > budget {
		return fmt.Errorf("%w: %s is %dx%d", ErrImageTooLarge, name, cfg.Width, cfg.Height)
	}
	return nil
}

// scale fits the image inside MaxDimension x MaxDimension, preserving aspect
// ratio.
func (p *Processor) scale(src image.Image) image.Image {
	if p.MaxDimension <= 0 {
		return src
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= p.MaxDimension && h <= p.MaxDimension {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = p.MaxDimension
		nh = h * p.MaxDimension / w
	} else {
		nh = p.MaxDimension
		nw = w * p.MaxDimension / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
