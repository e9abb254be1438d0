// Package sqlite stores registry snapshots. JSONL files in the data
// directory are the source of truth; SQLite is a query cache rebuilt from
// them on Attach.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/era/internal/treepath"
	"github.com/mesh-intelligence/era/pkg/types"
)

// Backend persists snapshots as JSONL and answers queries from SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, creates the SQLite schema and loads
// the JSONL files into it.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	// The database is a cache; start from a fresh file every time.
	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	for _, ddl := range append(append([]string(nil), schemaDDL...), indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}

	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	config.DataDir = dataDir
	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach releases all resources held by the backend.
// After Detach, all operations return ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	return nil
}

// initJSONLFiles creates empty JSONL files that do not exist yet.
func initJSONLFiles(dataDir string) error {
	for _, name := range jsonlFiles {
		path := filepath.Join(dataDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
	}
	return nil
}

// Save replaces the stored snapshot with snap. The JSONL files are written
// first, each atomically, then the SQLite tables are reloaded from them.
// An empty RunID is filled with a new UUID v7. It returns the run id.
func (b *Backend) Save(snap types.Snapshot) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrDetached
	}

	runID := snap.RunID
	if runID == "" {
		runID = generateUUID()
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	runs, err := marshalRecords([]runRecord{{RunID: runID, CreatedAt: createdAt.Format(time.RFC3339Nano)}})
	if err != nil {
		return "", err
	}

	modRecords := make([]moduleRecord, 0, len(snap.Modules))
	for _, m := range snap.Modules {
		modRecords = append(modRecords, moduleRecord{
			Name:        m.Name,
			Description: m.Description,
			Version:     m.Version,
			Position:    m.Position,
			RunID:       runID,
		})
	}
	modules, err := marshalRecords(modRecords)
	if err != nil {
		return "", err
	}

	treeRecords := make([]treeRecord, 0, len(types.Categories))
	for _, category := range types.Categories {
		tree := snap.Trees[category]
		if tree == nil {
			tree = types.NewMapping()
		}
		content, err := json.Marshal(tree)
		if err != nil {
			return "", fmt.Errorf("encoding %s tree: %w", category, err)
		}
		treeRecords = append(treeRecords, treeRecord{Category: category, RunID: runID, Content: content})
	}
	trees, err := marshalRecords(treeRecords)
	if err != nil {
		return "", err
	}

	dataDir := b.config.DataDir
	for _, f := range []struct {
		name    string
		records []json.RawMessage
	}{
		{modulesJSONL, modules},
		{treesJSONL, trees},
		{runsJSONL, runs},
	} {
		if err := writeJSONL(filepath.Join(dataDir, f.name), f.records); err != nil {
			return "", fmt.Errorf("persisting %s: %w", f.name, err)
		}
	}

	if err := loadAllJSONL(b.db, dataDir); err != nil {
		return "", fmt.Errorf("reloading snapshot: %w", err)
	}
	return runID, nil
}

// RunID returns the id of the stored snapshot, or ErrNoSnapshot.
func (b *Backend) RunID() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return "", types.ErrDetached
	}
	var id string
	err := b.db.QueryRow("SELECT run_id FROM runs ORDER BY created_at DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.ErrNoSnapshot
	}
	if err != nil {
		return "", fmt.Errorf("querying run: %w", err)
	}
	return id, nil
}

// Modules returns the stored modules in load order.
func (b *Backend) Modules() ([]types.ModuleInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	rows, err := b.db.Query("SELECT name, description, version, position FROM modules ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying modules: %w", err)
	}
	defer rows.Close()

	var out []types.ModuleInfo
	for rows.Next() {
		var m types.ModuleInfo
		var desc, version sql.NullString
		if err := rows.Scan(&m.Name, &desc, &version, &m.Position); err != nil {
			return nil, fmt.Errorf("scanning module: %w", err)
		}
		m.Description = desc.String
		m.Version = version.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Tree returns the stored tree for category. Unknown categories return
// ErrPathNotFound.
func (b *Backend) Tree(category string) (*types.Mapping, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	var content string
	err := b.db.QueryRow("SELECT content FROM trees WHERE category = ?", category).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", category, types.ErrPathNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying tree: %w", err)
	}
	n, err := types.DecodeJSON([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("decoding %s tree: %w", category, err)
	}
	m, ok := n.(*types.Mapping)
	if !ok {
		return nil, fmt.Errorf("%s tree is not a mapping: %w", category, types.ErrInvalidData)
	}
	return m, nil
}

// Lookup returns the node at a dotted path inside category. Sequence
// elements are addressed by index.
func (b *Backend) Lookup(category, path string) (types.Node, error) {
	if _, err := treepath.Split(path); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	var value string
	err := b.db.QueryRow("SELECT value FROM entries WHERE category = ? AND path = ?", category, path).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s.%s: %w", category, path, types.ErrPathNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	return types.DecodeJSON([]byte(value))
}

// generateUUID generates a new UUID v7 for run ids.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
