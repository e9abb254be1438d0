package cli

import (
	"fmt"

	"github.com/mesh-intelligence/era/pkg/sqlite"
	"github.com/mesh-intelligence/era/pkg/types"
)

// attachStore resolves the store config and attaches a SQLite backend. The
// caller must Detach it.
func (a *app) attachStore() (sqlite.Store, types.Config, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, types.Config{}, userError(err)
	}
	store := sqlite.NewBackend()
	if err := store.Attach(cfg); err != nil {
		return nil, cfg, sysError(fmt.Errorf("attach store: %w", err))
	}
	return store, cfg, nil
}

// saveSnapshot writes snap to the store and returns its run id.
func (a *app) saveSnapshot(snap types.Snapshot) (string, error) {
	store, _, err := a.attachStore()
	if err != nil {
		return "", err
	}
	defer store.Detach()

	runID, err := store.Save(snap)
	if err != nil {
		return "", sysError(fmt.Errorf("save snapshot: %w", err))
	}
	return runID, nil
}
