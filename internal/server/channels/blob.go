package channels

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophgroups/internal/filex"
)

// BlobStore keeps message bodies by locator.
type BlobStore interface {
	Put(ctx context.Context, locator string, data []byte) error
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// NewLocator returns a fresh storage locator, date-prefixed so bodies spread
// over directories or key prefixes.
func NewLocator() string {
	d := time.Now().UTC()
	return fmt.Sprintf("%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// MemoryBlobStore keeps bodies in memory.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(_ context.Context, locator string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[locator] = slices.Clone(data)
	return nil
}

func (m *MemoryBlobStore) Get(_ context.Context, locator string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[locator]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return slices.Clone(b), nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[locator]; !ok {
		return ErrBlobNotFound
	}
	delete(m.blobs, locator)
	return nil
}

// FileBlobStore keeps one file per message under a root directory.
type FileBlobStore struct {
	root string
}

func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	root, err := filex.EnsureSubdDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileBlobStore{root: root}, nil
}

func (f *FileBlobStore) path(locator string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(locator)) {
		return "", fmt.Errorf("%w: %q", ErrBlobNotFound, locator)
	}
	return filepath.Join(f.root, filepath.FromSlash(locator)), nil
}

func (f *FileBlobStore) Put(_ context.Context, locator string, data []byte) error {
	p, err := f.path(locator)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(p, data, 0o600)
}

func (f *FileBlobStore) Get(_ context.Context, locator string) ([]byte, error) {
	p, err := f.path(locator)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return b, err
}

func (f *FileBlobStore) Delete(_ context.Context, locator string) error {
	p, err := f.path(locator)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}
