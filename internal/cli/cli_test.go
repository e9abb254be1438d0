package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/era/pkg/types"
)

type env struct {
	t          *testing.T
	configDir  string
	dataDir    string
	contentDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	t.Setenv("ERA_LOG_LEVEL", "warn")
	t.Setenv("ERA_LOG_FORMAT", "json")
	return &env{
		t:          t,
		configDir:  filepath.Join(root, "config"),
		dataDir:    filepath.Join(root, "data"),
		contentDir: filepath.Join(root, "content"),
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func (e *env) run(args ...string) result {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (e *env) mustRun(args ...string) result {
	e.t.Helper()
	r := e.run(args...)
	require.Equal(e.t, exitSuccess, r.code, "era %s\nstderr: %s", strings.Join(args, " "), r.stderr)
	return r
}

func (e *env) write(rel, text string) {
	e.t.Helper()
	p := filepath.Join(e.contentDir, rel)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(e.t, os.WriteFile(p, []byte(text), 0o644))
}

func (e *env) writePackages() {
	e.write("10-core/module.yaml", "name: core\ndescription: Core content\nversion: 1.0.0\n")
	e.write("10-core/data/stats.csv", "hp,10\nhp,12\nmp,5\n")
	e.write("20-addon/module.yaml", "name: addon\nversion: 0.2.0\n")
	e.write("20-addon/data/stats.csv", "sp,3\n")
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	r := e.mustRun("version")
	assert.Contains(t, r.stdout, "era v"+Version)
	assert.Contains(t, r.stdout, modulePath)
}

func TestInit(t *testing.T) {
	e := newEnv(t)
	r := e.mustRun("init")
	assert.Contains(t, r.stdout, "era initialized")

	cfg, err := os.ReadFile(filepath.Join(e.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "backend: sqlite")
	assert.Contains(t, string(cfg), "http_addr:")
	assert.Contains(t, string(cfg), defaultHTTPAddr)

	_, err = os.Stat(filepath.Join(e.dataDir, "era.db"))
	assert.NoError(t, err)

	// Running init again leaves the existing config in place.
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"), []byte("backend: sqlite\n"), 0o644))
	r = e.mustRun("--json", "init")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &out))
	assert.Equal(t, false, out["config_written"])
}

func TestLoadAndQuery(t *testing.T) {
	e := newEnv(t)
	e.writePackages()

	r := e.mustRun("load", e.contentDir)
	assert.Contains(t, r.stdout, "Loaded 2 modules")

	r = e.mustRun("--json", "modules")
	var mods []types.ModuleInfo
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &mods))
	require.Len(t, mods, 2)
	assert.Equal(t, "core", mods[0].Name)
	assert.Equal(t, 1, mods[0].Position)
	assert.Equal(t, "Core content", mods[0].Description)
	assert.Equal(t, "addon", mods[1].Name)
	assert.Equal(t, 2, mods[1].Position)

	r = e.mustRun("modules")
	assert.Contains(t, r.stdout, "NAME")
	assert.Contains(t, r.stdout, "addon")

	assert.Equal(t, "5\n", e.mustRun("get", "data", "stats.mp").stdout)
	assert.Equal(t, "3\n", e.mustRun("get", "data", "stats.sp").stdout)
	assert.JSONEq(t, `[10, 12]`, e.mustRun("get", "data", "stats.hp").stdout)
	assert.JSONEq(t, `5`, e.mustRun("--json", "get", "data", "stats.mp").stdout)
	assert.JSONEq(t, `{"stats": {"hp": [10, 12], "mp": 5, "sp": 3}}`, e.mustRun("get", "data").stdout)
}

func TestLoadUsesConfiguredContentDirs(t *testing.T) {
	e := newEnv(t)
	e.writePackages()
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	cfg := fmt.Sprintf("backend: sqlite\ncontent_dirs:\n  - %s\n", e.contentDir)
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, "config.yaml"), []byte(cfg), 0o644))

	r := e.mustRun("--json", "load")
	var out struct {
		RunID   string   `json:"run_id"`
		Modules []string `json:"modules"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &out))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, []string{"core", "addon"}, out.Modules)
}

func TestQueryErrors(t *testing.T) {
	e := newEnv(t)
	e.writePackages()
	e.mustRun("load", e.contentDir)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing path", []string{"get", "data", "stats.nope"}, exitUserError},
		{"unknown category", []string{"get", "nope"}, exitUserError},
		{"invalid path", []string{"get", "data", "stats..hp"}, exitUserError},
		{"too many args", []string{"get", "data", "a", "b"}, exitUserError},
		{"missing content dir", []string{"load", filepath.Join(e.contentDir, "absent")}, exitUserError},
		{"unknown flag", []string{"modules", "--unknown"}, exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.run(tt.args...)
			assert.Equal(t, tt.code, r.code)
			assert.Contains(t, r.stderr, "era:")
		})
	}
}

func TestParse(t *testing.T) {
	e := newEnv(t)
	e.write("stats.csv", "hp,10\nhp,12\n")
	e.write("items.xml", "<items><item><name>Sword</name></item></items>")
	e.write("notes.md", "# notes")

	r := e.mustRun("parse", filepath.Join(e.contentDir, "stats.csv"))
	assert.JSONEq(t, `{"hp": [10, 12]}`, r.stdout)

	r = e.mustRun("parse", filepath.Join(e.contentDir, "items.xml"))
	assert.JSONEq(t, `{"item": {"name": "Sword"}}`, r.stdout)

	r = e.run("parse", filepath.Join(e.contentDir, "notes.md"))
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, types.ErrUnsupportedFormat.Error())

	r = e.run("parse", filepath.Join(e.contentDir, "absent.csv"))
	assert.Equal(t, exitUserError, r.code)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, exitUserError, userError(errors.New("x")).(*exitError).code)
	assert.Equal(t, exitSysError, sysError(errors.New("x")).(*exitError).code)

	wrapped := fmt.Errorf("outer: %w", sysError(types.ErrDetached))
	var ee *exitError
	require.True(t, errors.As(wrapped, &ee))
	assert.ErrorIs(t, wrapped, types.ErrDetached)

	assert.Equal(t, exitUserError, queryError(types.ErrPathNotFound).(*exitError).code)
	assert.Equal(t, exitSysError, queryError(errors.New("disk")).(*exitError).code)
}
