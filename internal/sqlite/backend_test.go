// Tests for the snapshot store.
package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mesh-intelligence/era/pkg/types"
)

func attach(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { b.Detach() })
	return b
}

func sampleSnapshot() types.Snapshot {
	return types.Snapshot{
		Modules: []types.ModuleInfo{
			{Name: "core", Description: "Core content", Version: "1.0", Position: 1},
			{Name: "extra", Position: 2},
		},
		Trees: map[string]*types.Mapping{
			types.CategoryData: types.MappingOf(
				"zeta", 1,
				"alpha", map[string]any{"tags": []any{"a", "b"}},
			),
			types.CategoryLanguage: types.MappingOf("en", map[string]any{"hello": "Hello"}),
		},
	}
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()
	b := attach(t, tmpDir)

	if _, err := os.Stat(filepath.Join(tmpDir, dbFile)); os.IsNotExist(err) {
		t.Errorf("%s not created", dbFile)
	}
	for _, name := range jsonlFiles {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); os.IsNotExist(err) {
			t.Errorf("expected %s to be created", name)
		}
	}

	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: tmpDir})
	if err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}

	if _, err := b.RunID(); !errors.Is(err, types.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot on empty store, got %v", err)
	}
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	if err := b.Attach(types.Config{DataDir: t.TempDir()}); err != types.ErrBackendEmpty {
		t.Errorf("expected ErrBackendEmpty, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b := attach(t, t.TempDir())

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}

	if _, err := b.Modules(); err != types.ErrDetached {
		t.Errorf("expected ErrDetached, got %v", err)
	}
	if _, err := b.Save(types.Snapshot{}); err != types.ErrDetached {
		t.Errorf("expected ErrDetached from Save, got %v", err)
	}
}

func TestBackend_SaveAndQuery(t *testing.T) {
	b := attach(t, t.TempDir())

	runID, err := b.Save(sampleSnapshot())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(runID) != 36 {
		t.Errorf("expected a UUID run id, got %q", runID)
	}
	got, err := b.RunID()
	if err != nil || got != runID {
		t.Errorf("RunID() = %q, %v; want %q", got, err, runID)
	}

	mods, err := b.Modules()
	if err != nil {
		t.Fatalf("Modules failed: %v", err)
	}
	if len(mods) != 2 || mods[0].Name != "core" || mods[1].Name != "extra" {
		t.Fatalf("unexpected modules: %+v", mods)
	}
	if mods[0].Version != "1.0" || mods[0].Description != "Core content" {
		t.Errorf("module fields not stored: %+v", mods[0])
	}

	data, err := b.Tree(types.CategoryData)
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if keys := strings.Join(data.Keys(), ","); keys != "zeta,alpha" {
		t.Errorf("key order not preserved: %s", keys)
	}

	setup, err := b.Tree(types.CategorySetup)
	if err != nil || setup.Len() != 0 {
		t.Errorf("expected empty setup tree, got %v, %v", setup, err)
	}

	n, err := b.Lookup(types.CategoryData, "alpha.tags.1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if n != types.String("b") {
		t.Errorf("Lookup = %v, want b", n)
	}

	n, err = b.Lookup(types.CategoryLanguage, "en")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if m, ok := n.(*types.Mapping); !ok || !m.Has("hello") {
		t.Errorf("expected mapping with hello, got %v", n)
	}

	if _, err := b.Lookup(types.CategoryData, "alpha.missing"); !errors.Is(err, types.ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound, got %v", err)
	}
	if _, err := b.Lookup(types.CategoryData, "alpha..tags"); !errors.Is(err, types.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := b.Tree("nope"); !errors.Is(err, types.ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound for unknown category, got %v", err)
	}
}

func TestBackend_SaveReplaces(t *testing.T) {
	b := attach(t, t.TempDir())

	if _, err := b.Save(sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second := types.Snapshot{
		RunID:   "fixed-run",
		Modules: []types.ModuleInfo{{Name: "only", Position: 1}},
	}
	runID, err := b.Save(second)
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if runID != "fixed-run" {
		t.Errorf("expected caller run id to be kept, got %q", runID)
	}

	mods, _ := b.Modules()
	if len(mods) != 1 || mods[0].Name != "only" {
		t.Errorf("expected only the second snapshot's modules, got %+v", mods)
	}
	if _, err := b.Lookup(types.CategoryData, "zeta"); !errors.Is(err, types.ErrPathNotFound) {
		t.Errorf("expected old entries to be gone, got %v", err)
	}
}

func TestBackend_ReloadFromJSONL(t *testing.T) {
	tmpDir := t.TempDir()
	b := attach(t, tmpDir)
	runID, err := b.Save(sampleSnapshot())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	b.Detach()

	// Corrupt lines are skipped on load.
	f, err := os.OpenFile(filepath.Join(tmpDir, modulesJSONL), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open modules.jsonl: %v", err)
	}
	f.WriteString("{not json\n")
	f.Close()

	b2 := attach(t, tmpDir)
	got, err := b2.RunID()
	if err != nil || got != runID {
		t.Errorf("RunID after reload = %q, %v; want %q", got, err, runID)
	}
	mods, err := b2.Modules()
	if err != nil || len(mods) != 2 {
		t.Errorf("expected 2 modules after reload, got %+v, %v", mods, err)
	}
	n, err := b2.Lookup(types.CategoryData, "zeta")
	if err != nil || n != types.Number(1) {
		t.Errorf("Lookup after reload = %v, %v", n, err)
	}
}

func TestWriteJSONLAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "x.jsonl")

	records, err := marshalRecords([]runRecord{{RunID: "a"}, {RunID: "b"}})
	if err != nil {
		t.Fatalf("marshalRecords failed: %v", err)
	}
	if err := writeJSONL(path, records); err != nil {
		t.Fatalf("writeJSONL failed: %v", err)
	}

	got, err := readJSONL(path)
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	entries, _ := os.ReadDir(tmpDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}

	missing, err := readJSONL(filepath.Join(tmpDir, "missing.jsonl"))
	if err != nil || missing != nil {
		t.Errorf("missing file should read as empty, got %v, %v", missing, err)
	}
}

func TestFlatten(t *testing.T) {
	root := types.MappingOf("a", map[string]any{"b": []any{1, map[string]any{"c": true}}})
	var paths []string
	err := flatten(root, "", func(p string, _ types.Node) error {
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	want := "a,a.b,a.b.0,a.b.1,a.b.1.c"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("flatten paths = %s, want %s", got, want)
	}
}
