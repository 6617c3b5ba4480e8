package content

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NjengaIWJ/tetea-jamii/internal/domain/media"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/storage"
)

// memoryHost keeps uploaded objects in a map, for asserting upload and
// cleanup behavior without a real object store.
type memoryHost struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryHost() *memoryHost {
	return &memoryHost{objects: make(map[string][]byte)}
}

func (m *memoryHost) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://media.test/" + key, nil
}

func (m *memoryHost) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("no such object: %s", key)
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryHost) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func newTestService(t *testing.T) (*Service, *memoryHost) {
	t.Helper()
	db, err := storage.OpenMemory()
	require.NoError(t, err)

	host := newMemoryHost()
	svc, err := NewService(Options{
		DB:        db,
		Host:      host,
		Processor: &media.Processor{MaxFileSize: 1 << 20, MaxFileCount: 6, MaxDimension: 1920, Quality: 80},
	})
	require.NoError(t, err)
	return svc, host
}

func testImage(t *testing.T) media.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return media.File{
		Name:        "pic.png",
		ContentType: "image/png",
		Size:        int64(buf.Len()),
		Reader:      &buf,
	}
}

func TestCreateStoryWithImages(t *testing.T) {
	svc, host := newTestService(t)

	story, err := svc.CreateStory(context.Background(), "Clean Water", "Borehole project.", []media.File{testImage(t)})
	require.NoError(t, err)
	assert.Equal(t, "Clean Water", story.Title)
	assert.Equal(t, 1, host.count())
	assert.Contains(t, string(story.Media), "https://media.test/images/")
}

func TestCreateStoryValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateStory(context.Background(), "", "body", nil)
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.CreateStory(context.Background(), "T", "  ", nil)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCreateStoryRejectsDuplicateTitle(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateStory(context.Background(), "Once", "body", nil)
	require.NoError(t, err)

	_, err = svc.CreateStory(context.Background(), "Once", "other body", nil)
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestUpdateStoryReplacesImages(t *testing.T) {
	svc, host := newTestService(t)

	story, err := svc.CreateStory(context.Background(), "S", "body", []media.File{testImage(t)})
	require.NoError(t, err)
	require.Equal(t, 1, host.count())

	title := "Renamed"
	updated, err := svc.UpdateStory(context.Background(), story.ID, StoryUpdate{
		Title:  &title,
		Images: []media.File{testImage(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	// old object removed, new one stored
	assert.Equal(t, 1, host.count())
	assert.NotEqual(t, string(story.MediaKeys), string(updated.MediaKeys))
}

func TestDeleteStoryRemovesMedia(t *testing.T) {
	svc, host := newTestService(t)

	story, err := svc.CreateStory(context.Background(), "S", "body", []media.File{testImage(t)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStory(context.Background(), story.ID))
	assert.Equal(t, 0, host.count())

	_, err = svc.GetStory(context.Background(), story.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStoryNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.DeleteStory(context.Background(), 999), ErrNotFound)
}

func TestListStoriesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.CreateStory(context.Background(), title, "body", nil)
		require.NoError(t, err)
	}

	stories, err := svc.ListStories(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 3)
}

func TestPartnerLifecycle(t *testing.T) {
	svc, host := newTestService(t)

	logo := testImage(t)
	partner, err := svc.CreatePartner(context.Background(), "Acme NGO", &logo)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(partner.Media, "https://media.test/images/"))
	assert.Equal(t, 1, host.count())

	_, err = svc.CreatePartner(context.Background(), "Acme NGO", nil)
	assert.ErrorIs(t, err, ErrDuplicateName)

	newLogo := testImage(t)
	updated, err := svc.UpdatePartner(context.Background(), partner.ID, PartnerUpdate{Logo: &newLogo})
	require.NoError(t, err)
	assert.NotEqual(t, partner.MediaKey, updated.MediaKey)
	assert.Equal(t, 1, host.count())

	require.NoError(t, svc.DeletePartner(context.Background(), partner.ID))
	assert.Equal(t, 0, host.count())
}

func TestDocumentLifecycle(t *testing.T) {
	svc, host := newTestService(t)

	doc, err := svc.CreateDocument(context.Background(), "Annual Report", media.File{
		Name:        "report.pdf",
		ContentType: "application/pdf",
		Size:        12,
		Reader:      strings.NewReader("PDF CONTENTS"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.URL, "https://media.test/media/"))
	assert.Equal(t, "application/pdf", doc.Mimetype)
	assert.Equal(t, 1, host.count())

	docs, err := svc.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, svc.DeleteDocument(context.Background(), doc.ID))
	assert.Equal(t, 0, host.count())
	assert.ErrorIs(t, svc.DeleteDocument(context.Background(), doc.ID), ErrNotFound)
}

func TestCreateDocumentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pdf := func(size int64) media.File {
		return media.File{Name: "a.pdf", ContentType: "application/pdf", Size: size, Reader: strings.NewReader("x")}
	}

	_, err := svc.CreateDocument(ctx, "", pdf(10))
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.CreateDocument(ctx, "Report", media.File{})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.CreateDocument(ctx, "ab", pdf(10))
	assert.ErrorIs(t, err, ErrTitleTooShort)

	_, err = svc.CreateDocument(ctx, "Report", media.File{
		Name: "a.exe", ContentType: "application/octet-stream", Size: 10, Reader: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrDocumentType)

	_, err = svc.CreateDocument(ctx, "Report", pdf(6<<20))
	assert.ErrorIs(t, err, ErrDocumentTooBig)
}
