// Package sqlite provides the public API for the SQLite snapshot store.
// This package exposes the factory function while keeping implementation
// details internal.
package sqlite

import (
	"github.com/mesh-intelligence/era/internal/sqlite"
	"github.com/mesh-intelligence/era/pkg/types"
)

// Store is the snapshot store contract.
type Store interface {
	Attach(config types.Config) error
	Detach() error
	Save(snap types.Snapshot) (string, error)
	RunID() (string, error)
	Modules() ([]types.ModuleInfo, error)
	Tree(category string) (*types.Mapping, error)
	Lookup(category, path string) (types.Node, error)
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".era",
//	})
//	defer store.Detach()
func NewBackend() Store {
	return sqlite.NewBackend()
}
