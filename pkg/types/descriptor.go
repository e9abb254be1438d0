package types

import (
	"context"
	"fmt"
)

// FuncBundle is a named group of functions contributed by a module.
type FuncBundle map[string]Function

// ApplyFunc is a module's deferred unit of work. The registry runs it after
// merging the module's contributions and before recording the module as
// applied. A non-nil error leaves the module registered but not applied.
type ApplyFunc func(ctx context.Context) error

// ModuleConfig carries the optional global binding requests of a module.
type ModuleConfig struct {
	// GlobalFunc entries are bound as globals when the name is free.
	GlobalFunc map[string]Function
	// GlobalData, when non-empty, binds <Name>Data to the module database.
	GlobalData map[string]Node
}

// Descriptor is the contribution of one content package. It is the only
// shape the registry accepts.
type Descriptor struct {
	Name        string
	Description string
	Version     string

	Config *ModuleConfig
	Func   map[string]FuncBundle
	Apply  ApplyFunc

	Language *Mapping
	Setup    *Mapping
	Data     *Mapping
	Database Node
	ClassObj map[string]any
}

// Validate checks the identity fields.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name must not be empty: %w", ErrInvalidDescriptor)
	}
	return nil
}
