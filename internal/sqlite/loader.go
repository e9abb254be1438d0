// This file implements JSONL loading for startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/mesh-intelligence/era/pkg/types"
)

// loadAllJSONL reads the JSONL files from dataDir and inserts them into the
// SQLite tables. Loading is transactional: all succeed or the database stays
// empty. Malformed lines and records are skipped; unknown fields are
// ignored.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	if err := loadRecordsTx(tx, dataDir); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

func loadRecordsTx(tx *sql.Tx, dataDir string) error {
	for _, table := range []string{"entries", "trees", "modules", "runs"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	runs, err := readJSONL(filepath.Join(dataDir, runsJSONL))
	if err != nil {
		return fmt.Errorf("reading %s: %w", runsJSONL, err)
	}
	if err := insertRuns(tx, runs); err != nil {
		return err
	}

	modules, err := readJSONL(filepath.Join(dataDir, modulesJSONL))
	if err != nil {
		return fmt.Errorf("reading %s: %w", modulesJSONL, err)
	}
	if err := insertModules(tx, modules); err != nil {
		return err
	}

	trees, err := readJSONL(filepath.Join(dataDir, treesJSONL))
	if err != nil {
		return fmt.Errorf("reading %s: %w", treesJSONL, err)
	}
	return insertTrees(tx, trees)
}

func insertRuns(tx *sql.Tx, records []json.RawMessage) error {
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO runs (run_id, created_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert for runs: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var r runRecord
		if err := json.Unmarshal(rec, &r); err != nil || r.RunID == "" {
			continue
		}
		if _, err := stmt.Exec(r.RunID, r.CreatedAt); err != nil {
			return fmt.Errorf("inserting run %s: %w", r.RunID, err)
		}
	}
	return nil
}

func insertModules(tx *sql.Tx, records []json.RawMessage) error {
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO modules (name, description, version, position, run_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert for modules: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var m moduleRecord
		if err := json.Unmarshal(rec, &m); err != nil || m.Name == "" {
			continue
		}
		if _, err := stmt.Exec(m.Name, m.Description, m.Version, m.Position, m.RunID); err != nil {
			return fmt.Errorf("inserting module %s: %w", m.Name, err)
		}
	}
	return nil
}

// insertTrees stores each category tree and flattens it into entries.
func insertTrees(tx *sql.Tx, records []json.RawMessage) error {
	treeStmt, err := tx.Prepare("INSERT OR REPLACE INTO trees (category, content, run_id) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert for trees: %w", err)
	}
	defer treeStmt.Close()

	entryStmt, err := tx.Prepare("INSERT OR REPLACE INTO entries (category, path, kind, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert for entries: %w", err)
	}
	defer entryStmt.Close()

	for _, rec := range records {
		var t treeRecord
		if err := json.Unmarshal(rec, &t); err != nil || t.Category == "" {
			continue
		}
		root, err := types.DecodeJSON(t.Content)
		if err != nil {
			continue
		}
		if _, err := treeStmt.Exec(t.Category, string(t.Content), t.RunID); err != nil {
			return fmt.Errorf("inserting tree %s: %w", t.Category, err)
		}
		err = flatten(root, "", func(path string, n types.Node) error {
			value, err := types.MarshalNode(n)
			if err != nil {
				return err
			}
			_, err = entryStmt.Exec(t.Category, path, kindName(n), string(value))
			return err
		})
		if err != nil {
			return fmt.Errorf("indexing tree %s: %w", t.Category, err)
		}
	}
	return nil
}

// flatten calls fn for every node below n with its dotted path. Sequence
// elements use their index as the segment.
func flatten(n types.Node, prefix string, fn func(path string, n types.Node) error) error {
	join := func(seg string) string {
		if prefix == "" {
			return seg
		}
		return prefix + "." + seg
	}
	switch v := n.(type) {
	case *types.Mapping:
		var err error
		v.Range(func(k string, child types.Node) bool {
			p := join(k)
			if err = fn(p, child); err != nil {
				return false
			}
			err = flatten(child, p, fn)
			return err == nil
		})
		return err
	case types.Sequence:
		for i, child := range v {
			p := join(strconv.Itoa(i))
			if err := fn(p, child); err != nil {
				return err
			}
			if err := flatten(child, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func kindName(n types.Node) string {
	if n == nil {
		return "null"
	}
	return n.Kind().String()
}
