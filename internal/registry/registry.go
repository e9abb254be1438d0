// Package registry holds the runtime state that content modules contribute
// to: class objects, function namespaces, the data, setup, language and
// database trees, global bindings and the load order.
//
// Modules are registered first and applied later. Applying a module merges
// its contributions into the shared trees using the typed merge policy in
// merge.go.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/era/internal/events"
	"github.com/mesh-intelligence/era/internal/treepath"
	"github.com/mesh-intelligence/era/pkg/types"
)

// State is the lifecycle state of a module.
type State int

// Module states.
const (
	StateUnregistered State = iota
	StateRegistered
	StateApplied
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateApplied:
		return "applied"
	}
	return "unregistered"
}

// Namespace names a function namespace.
type Namespace string

// Function namespaces.
const (
	Fixer             Namespace = "fixer"
	Conditions        Namespace = "conditions"
	DocumentGenerator Namespace = "documentGenerator"
	UIControl         Namespace = "UIControl"
	Initialization    Namespace = "initialization"
	Utils             Namespace = "utils"
)

// namespaceAliases maps descriptor function keys to the namespace their
// bundle is merged into. Any other key stores the bundle under utils.
var namespaceAliases = map[string]Namespace{
	"Fix":  Fixer,
	"Cond": Conditions,
	"P":    DocumentGenerator,
	"Ui":   UIControl,
	"Init": Initialization,
}

// Module is a registered module and its state.
type Module struct {
	Descriptor types.Descriptor
	State      State
}

// Registry is the shared runtime state. Construct it with New.
type Registry struct {
	logger zerolog.Logger
	bus    *events.Bus

	// applying guards against a second Apply while one is in flight.
	applying atomic.Bool

	mu         sync.RWMutex
	modules    map[string]*Module
	loadOrder  []string
	trees      map[string]*types.Mapping
	database   *types.Mapping
	classObj   map[string]any
	namespaces map[Namespace]types.FuncBundle
	utils      map[string]types.FuncBundle
	globals    map[string]any
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithBus sets the event bus lifecycle and merge events are published on.
func WithBus(bus *events.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// New creates an empty registry with the built-in global shortcuts bound.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:   zerolog.Nop(),
		modules:  make(map[string]*Module),
		database: types.NewMapping(),
		classObj: make(map[string]any),
		utils:    make(map[string]types.FuncBundle),
		globals:  make(map[string]any),
		trees: map[string]*types.Mapping{
			types.CategoryData:     types.NewMapping(),
			types.CategorySetup:    types.NewMapping(),
			types.CategoryLanguage: types.NewMapping(),
		},
		namespaces: make(map[Namespace]types.FuncBundle),
	}
	for _, ns := range namespaceAliases {
		r.namespaces[ns] = make(types.FuncBundle)
	}
	for _, opt := range opts {
		opt(r)
	}

	r.globals["D"] = r.trees[types.CategoryData]
	r.globals["Db"] = r.database
	r.globals["F"] = r.utils
	r.globals["L"] = r.trees[types.CategoryLanguage]
	r.globals["M"] = r.modules
	for alias, ns := range namespaceAliases {
		r.globals[alias] = r.namespaces[ns]
	}
	return r
}

// Register records a module descriptor. A name that is already registered
// is rejected and the existing entry is left unchanged.
func (r *Registry) Register(ctx context.Context, d types.Descriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("registering module: %w", err)
	}

	r.mu.Lock()
	if _, ok := r.modules[d.Name]; ok {
		r.mu.Unlock()
		r.logger.Warn().Str("module", d.Name).Msg("module already registered")
		return fmt.Errorf("registering module %q: %w", d.Name, types.ErrDuplicateModule)
	}
	r.modules[d.Name] = &Module{Descriptor: d, State: StateRegistered}
	r.mu.Unlock()

	r.logger.Debug().Str("module", d.Name).Str("version", d.Version).Msg("module registered")
	r.bus.Publish(ctx, events.Event{Name: events.ModuleRegistered, Module: d.Name})
	return nil
}

// Apply merges a registered module's contributions into the registry, runs
// its Apply action and appends it to the load order. Only one Apply may run
// at a time; the registry lock is released while the action runs so the
// action can read the registry.
func (r *Registry) Apply(ctx context.Context, name string) error {
	if !r.applying.CompareAndSwap(false, true) {
		return fmt.Errorf("applying module %q: %w", name, types.ErrApplyInProgress)
	}
	defer r.applying.Store(false)

	r.mu.Lock()
	mod, ok := r.modules[name]
	if !ok {
		r.mu.Unlock()
		r.logger.Error().Str("module", name).Msg("module not registered")
		return fmt.Errorf("applying module %q: %w", name, types.ErrModuleNotFound)
	}
	if mod.State == StateApplied {
		r.mu.Unlock()
		return fmt.Errorf("applying module %q: %w", name, types.ErrAlreadyApplied)
	}
	d := mod.Descriptor
	a := &applier{r: r, module: name}
	a.classObjects(d.ClassObj)
	a.functions(d.Func)
	a.tree(types.CategoryData, d.Data)
	a.tree(types.CategorySetup, d.Setup)
	a.tree(types.CategoryLanguage, d.Language)
	r.database.Set(name, d.Database)
	a.globals(d)
	r.mu.Unlock()

	for _, e := range a.pending {
		r.bus.Publish(ctx, e)
	}

	if d.Apply != nil {
		if err := d.Apply(ctx); err != nil {
			r.logger.Error().Err(err).Str("module", name).Msg("module apply action failed")
			return fmt.Errorf("applying module %q: %w", name, err)
		}
	}

	r.mu.Lock()
	mod.State = StateApplied
	r.loadOrder = append(r.loadOrder, name)
	position := len(r.loadOrder)
	r.mu.Unlock()

	r.logger.Info().Str("module", name).Int("position", position).Msg("module applied")
	r.bus.Publish(ctx, events.Event{
		Name:   events.ModuleApplied,
		Module: name,
		Data:   map[string]any{"position": position},
	})
	return nil
}

// HasModule reports whether name has been applied.
func (r *Registry) HasModule(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.modules[name]
	return ok && mod.State == StateApplied
}

// Module returns the registered module called name.
func (r *Registry) Module(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.modules[name]
	if !ok {
		return Module{}, false
	}
	return *mod, true
}

// Modules returns every registered module sorted by name.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.modules))
	for _, mod := range r.modules {
		out = append(out, *mod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.Name < out[j].Descriptor.Name })
	return out
}

// LoadOrder returns the names of applied modules in the order they were
// applied.
func (r *Registry) LoadOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.loadOrder...)
}

// Data returns the data tree. The returned mapping is live: Apply merges
// into it in place, so it must not be read while an Apply runs. Use CopyTree
// or Snapshot for a stable view.
func (r *Registry) Data() *types.Mapping { return r.trees[types.CategoryData] }

// Setup returns the live setup tree; see Data.
func (r *Registry) Setup() *types.Mapping { return r.trees[types.CategorySetup] }

// Language returns the live language tree; see Data.
func (r *Registry) Language() *types.Mapping { return r.trees[types.CategoryLanguage] }

// Database returns the database contributed by module name.
func (r *Registry) Database(name string) (types.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.database.Get(name)
}

// Tree returns the live tree for category, which is one of
// types.Categories. Like Data, it must not be read while an Apply runs.
func (r *Registry) Tree(category string) (*types.Mapping, bool) {
	if category == types.CategoryDatabase {
		return r.database, true
	}
	t, ok := r.trees[category]
	return t, ok
}

// CopyTree returns a deep copy of the tree for category, taken under the
// registry lock.
func (r *Registry) CopyTree(category string) (*types.Mapping, bool) {
	tree, ok := r.Tree(category)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTree(tree).(*types.Mapping), true
}

// Lookup resolves a dotted path inside a category tree.
func (r *Registry) Lookup(category, path string) (types.Node, error) {
	tree, ok := r.Tree(category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q: %w", category, types.ErrPathNotFound)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return treepath.Get(tree, path)
}

// Namespace returns a copy of the functions bound in ns. For Utils the
// result is empty; use Utility for the named bundles stored there.
func (r *Registry) Namespace(ns Namespace) types.FuncBundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(types.FuncBundle, len(r.namespaces[ns]))
	for k, fn := range r.namespaces[ns] {
		out[k] = fn
	}
	return out
}

// Function returns the function called name in ns.
func (r *Registry) Function(ns Namespace, name string) (types.Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.namespaces[ns][name]
	return fn, ok
}

// Utility returns the bundle stored under key in the utils namespace.
func (r *Registry) Utility(key string) (types.FuncBundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.utils[key]
	return b, ok
}

// ClassObj returns the class object registered under name.
func (r *Registry) ClassObj(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.classObj[name]
	return v, ok
}

// Global returns the global bound to name.
func (r *Registry) Global(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.globals[name]
	return v, ok
}

// Snapshot exports the applied modules and a copy of every category tree.
// Later Apply calls do not change a snapshot already taken.
func (r *Registry) Snapshot() types.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := types.Snapshot{
		CreatedAt: time.Now().UTC(),
		Modules:   make([]types.ModuleInfo, 0, len(r.loadOrder)),
		Trees:     make(map[string]*types.Mapping, len(types.Categories)),
	}
	for i, name := range r.loadOrder {
		d := r.modules[name].Descriptor
		snap.Modules = append(snap.Modules, types.ModuleInfo{
			Name:        d.Name,
			Description: d.Description,
			Version:     d.Version,
			Position:    i + 1,
		})
	}
	for category, tree := range r.trees {
		snap.Trees[category] = cloneTree(tree).(*types.Mapping)
	}
	snap.Trees[types.CategoryDatabase] = cloneTree(r.database).(*types.Mapping)
	return snap
}

// upperFirst upper-cases the first rune of s.
func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
