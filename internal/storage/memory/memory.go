package memory

import (
	"context"
	"os"
	"strings"
	"sync"

	"billrecords/internal/storage"
)

var _ storage.KeyValueStore = (*Store)(nil)

// Store is a process-local KeyValueStore. Nothing survives a restart.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	closed bool
}

func New() *Store {
	return &Store{values: map[string]string{}}
}

// NewFromFile returns a store whose key is pre-loaded with the contents of
// path. A missing or blank file leaves the key unset.
func NewFromFile(key, path string) *Store {
	s := New()
	b, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if v := strings.TrimSpace(string(b)); v != "" {
		s.values[key] = v
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, storage.ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.values[key] = value
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
