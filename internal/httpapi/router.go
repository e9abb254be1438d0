// Package httpapi serves a read-only JSON view of loaded content.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/era/pkg/types"
)

// Source answers the inspector's queries. The snapshot store implements it;
// FromRegistry adapts a live registry.
type Source interface {
	Modules() ([]types.ModuleInfo, error)
	Tree(category string) (*types.Mapping, error)
	Lookup(category, path string) (types.Node, error)
}

// RouterConfig holds optional router dependencies.
type RouterConfig struct {
	// Gatherer, when set, is exposed at /metrics.
	Gatherer prometheus.Gatherer
}

// NewRouter creates the inspector router.
func NewRouter(src Source, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handler{src: src, logger: logger}
	r.Get("/health", h.health)
	r.Get("/modules", h.modules)
	r.Get("/tree/{category}", h.tree)
	r.Get("/tree/{category}/*", h.lookup)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type handler struct {
	src    Source
	logger zerolog.Logger
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) modules(w http.ResponseWriter, _ *http.Request) {
	mods, err := h.src.Modules()
	if err != nil {
		h.fail(w, err)
		return
	}
	if mods == nil {
		mods = []types.ModuleInfo{}
	}
	writeJSON(w, http.StatusOK, mods)
}

func (h *handler) tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.src.Tree(chi.URLParam(r, "category"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeNode(w, tree)
}

// lookup serves /tree/{category}/{path}. The path may use dots or slashes
// between segments.
func (h *handler) lookup(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(chi.URLParam(r, "*"), "/")
	path = strings.ReplaceAll(path, "/", ".")
	if path == "" {
		h.tree(w, r)
		return
	}
	n, err := h.src.Lookup(chi.URLParam(r, "category"), path)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeNode(w, n)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrPathNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNoSnapshot), errors.Is(err, types.ErrDetached):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("inspector query failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeNode(w http.ResponseWriter, n types.Node) {
	body, err := types.MarshalNode(n)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewLoggingMiddleware logs each request at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				return
			}
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
