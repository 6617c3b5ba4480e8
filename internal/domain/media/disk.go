package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskHost stores media objects on the local filesystem, for development
// and tests where no object store is configured. Objects land under root
// and are served from baseURL by the static file middleware.
type DiskHost struct {
	root    string
	baseURL string
}

// NewDiskHost builds a filesystem-backed host rooted at dir.
func NewDiskHost(dir, baseURL string) (*DiskHost, error) {
	if dir == "" {
		return nil, fmt.Errorf("disk host requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &DiskHost{root: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (h *DiskHost) path(key string) string {
	return filepath.Join(h.root, filepath.FromSlash(key))
}

// Upload writes the object under the root directory.
func (h *DiskHost) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	path := h.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create object %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return h.baseURL + "/" + key, nil
}

// Delete removes the object file.
func (h *DiskHost) Delete(_ context.Context, key string) error {
	if err := os.Remove(h.path(key)); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
