package httpapi

import (
	"fmt"

	"github.com/mesh-intelligence/era/internal/registry"
	"github.com/mesh-intelligence/era/pkg/types"
)

// FromRegistry serves the registry returned by current. It is called on
// every request so a watcher can swap in a rebuilt registry.
func FromRegistry(current func() *registry.Registry) Source {
	return registrySource{current: current}
}

type registrySource struct {
	current func() *registry.Registry
}

func (s registrySource) Modules() ([]types.ModuleInfo, error) {
	return s.current().Snapshot().Modules, nil
}

func (s registrySource) Tree(category string) (*types.Mapping, error) {
	tree, ok := s.current().CopyTree(category)
	if !ok {
		return nil, fmt.Errorf("category %q: %w", category, types.ErrPathNotFound)
	}
	return tree, nil
}

func (s registrySource) Lookup(category, path string) (types.Node, error) {
	return s.current().Lookup(category, path)
}
