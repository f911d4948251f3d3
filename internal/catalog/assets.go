package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AssetStore holds downloadable study material (chapter notes, papers) on an
// afero filesystem, so tests and the CLI can run it fully in memory.
type AssetStore struct {
	fs afero.Fs
}

// NewAssetStore creates an asset store over the given filesystem.
func NewAssetStore(fs afero.Fs) *AssetStore {
	return &AssetStore{fs: fs}
}

// Save writes the reader's content under key and returns the byte count.
func (s *AssetStore) Save(ctx context.Context, key string, reader io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(key), 0755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(key)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Get opens an asset for reading.
func (s *AssetStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.fs.OpenFile(key, os.O_RDONLY, 0)
}

// Delete removes an asset.
func (s *AssetStore) Delete(ctx context.Context, key string) error {
	return s.fs.Remove(key)
}
