package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	atomicio "github.com/sawpanic/cryptoquote/internal/io"
)

// ErrCacheMiss is returned by a Store that holds no coin list.
var ErrCacheMiss = errors.New("coin list not cached")

// Store persists the raw coin list body between runs.
type Store interface {
	// Get returns the cached body and the time it was fetched.
	Get(ctx context.Context) ([]byte, time.Time, error)
	Put(ctx context.Context, body []byte) error
	Delete(ctx context.Context) error
	// Describe names the backing location for status output.
	Describe() string
}

// DefaultCachePath is the cache file used when none is configured.
const DefaultCachePath = "coin_list.json"

// FileStore keeps the coin list in a single JSON file. The file's
// modification time is the fetch time.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultCachePath
	}
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context) ([]byte, time.Time, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", s.path, err)
	}

	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return body, info.ModTime(), nil
}

func (s *FileStore) Put(_ context.Context, body []byte) error {
	return atomicio.WriteFileAtomic(s.path, body, 0644)
}

func (s *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Describe() string { return "file " + s.path }
