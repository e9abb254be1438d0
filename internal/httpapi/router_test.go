package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/era/internal/registry"
	"github.com/mesh-intelligence/era/pkg/types"
)

func loadedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, types.Descriptor{
		Name:    "core",
		Version: "1.0",
		Data:    types.MappingOf("npc", map[string]any{"names": []any{"Ann", "Bob"}}),
	}))
	require.NoError(t, reg.Apply(ctx, "core"))
	return reg
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesRegistry(t *testing.T) {
	reg := loadedRegistry(t)
	r := NewRouter(FromRegistry(func() *registry.Registry { return reg }), zerolog.Nop(), RouterConfig{})

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"health", "/health", http.StatusOK, `{"status":"ok"}`},
		{"tree", "/tree/data", http.StatusOK, `{"npc":{"names":["Ann","Bob"]}}`},
		{"dotted path", "/tree/data/npc.names.1", http.StatusOK, `"Bob"`},
		{"slashed path", "/tree/data/npc/names", http.StatusOK, `["Ann","Bob"]`},
		{"trailing slash", "/tree/data/", http.StatusOK, `{"npc":{"names":["Ann","Bob"]}}`},
		{"missing path", "/tree/data/npc.age", http.StatusNotFound, ""},
		{"unknown category", "/tree/nope", http.StatusNotFound, ""},
		{"bad path", "/tree/data/npc..names", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRouterModules(t *testing.T) {
	reg := loadedRegistry(t)
	r := NewRouter(FromRegistry(func() *registry.Registry { return reg }), zerolog.Nop(), RouterConfig{})

	rec := get(t, r, "/modules")
	require.Equal(t, http.StatusOK, rec.Code)

	var mods []types.ModuleInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mods))
	require.Len(t, mods, 1)
	assert.Equal(t, "core", mods[0].Name)
	assert.Equal(t, 1, mods[0].Position)
}

type emptySource struct{}

func (emptySource) Modules() ([]types.ModuleInfo, error) { return nil, nil }
func (emptySource) Tree(string) (*types.Mapping, error) { return nil, types.ErrNoSnapshot }
func (emptySource) Lookup(string, string) (types.Node, error) {
	return nil, types.ErrDetached
}

func TestRouterErrors(t *testing.T) {
	r := NewRouter(emptySource{}, zerolog.Nop(), RouterConfig{})

	rec := get(t, r, "/modules")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = get(t, r, "/tree/data")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = get(t, r, "/tree/data/x")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "detached")

	rec = get(t, r, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are off without a gatherer")
}

func TestRouterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "era_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	r := NewRouter(emptySource{}, zerolog.Nop(), RouterConfig{Gatherer: reg})
	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "era_test_total 1"))
}
