// Package savestore keeps one archived save blob per (user, emulator) pair.
package savestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"
	"time"

	"github.com/adri6412/cloud-saves-server/internal/storage"
)

// ErrNoSave reports that no entry exists for the requested pair.
var ErrNoSave = errors.New("save not found")

// Store maps (nickname, emulator) to a blob in the backing storage. Writes
// are serialized; reads run concurrently.
type Store struct {
	backend storage.Storage
	mu      sync.Mutex
}

func New(backend storage.Storage) *Store {
	return &Store{backend: backend}
}

func key(nickname, emulator string) string {
	return path.Join(nickname, emulator+".zip")
}

// Put overwrites the entry for (nickname, emulator) and returns the
// storage-reported modified time of the written blob.
func (s *Store) Put(ctx context.Context, nickname, emulator string, blob io.Reader, size int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(nickname, emulator)
	if err := s.backend.Put(ctx, k, blob, size); err != nil {
		return time.Time{}, fmt.Errorf("store save: %w", err)
	}
	info, err := s.backend.Stat(ctx, k)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat save: %w", err)
	}
	return info.Modified, nil
}

// Get returns the stored blob, or ErrNoSave if no entry exists.
func (s *Store) Get(ctx context.Context, nickname, emulator string) (io.ReadCloser, error) {
	r, err := s.backend.Get(ctx, key(nickname, emulator))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSave
		}
		return nil, err
	}
	return r, nil
}

// Info returns the modified time of the stored blob, or ErrNoSave.
func (s *Store) Info(ctx context.Context, nickname, emulator string) (time.Time, error) {
	info, err := s.backend.Stat(ctx, key(nickname, emulator))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, ErrNoSave
		}
		return time.Time{}, err
	}
	return info.Modified, nil
}
