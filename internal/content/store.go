// Package content holds the named text blocks that loaders read raw source
// from and that renderers write text back into.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrBlockNotFound is returned when no block has the requested name.
var ErrBlockNotFound = errors.New("content block not found")

// Store is the minimal capability the ingestion pipeline needs from the host.
type Store interface {
	// Text returns the block named name, or ErrBlockNotFound.
	Text(name string) (string, error)
	// SetText replaces (or creates) the block named name.
	SetText(name, text string) error
	// AppendText appends to the block named name, creating it if missing.
	AppendText(name, text string) error
}

// MemStore is an in-memory Store safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[string]string
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[string]string)}
}

func (s *MemStore) Text(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.blocks[name]
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrBlockNotFound)
	}
	return t, nil
}

func (s *MemStore) SetText(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[name] = text
	return nil
}

func (s *MemStore) AppendText(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[name] += text
	return nil
}

// Names returns the block names with the given prefix, sorted.
func (s *MemStore) Names(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for n := range s.blocks {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// LoadFS copies every regular file of fsys into store. Block names are the
// slash-separated file paths joined under prefix. Hidden files and
// directories (leading dot) are skipped. It returns the names loaded.
func LoadFS(store Store, fsys fs.FS, prefix string) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		name := path.Join(prefix, p)
		if err := store.SetText(name, string(data)); err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
