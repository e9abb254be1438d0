package registry

import (
	"sort"

	"github.com/mesh-intelligence/era/internal/events"
	"github.com/mesh-intelligence/era/pkg/types"
)

// applier performs the merge steps of one Apply while the registry lock is
// held. Events are queued and published after the lock is released.
type applier struct {
	r       *Registry
	module  string
	pending []events.Event
}

func (a *applier) emit(name string, data map[string]any) {
	a.pending = append(a.pending, events.Event{Name: name, Module: a.module, Data: data})
}

func (a *applier) classObjects(objs map[string]any) {
	for _, name := range sortedKeys(objs) {
		a.r.classObj[name] = objs[name]
	}
}

func (a *applier) functions(bundles map[string]types.FuncBundle) {
	for _, key := range sortedKeys(bundles) {
		bundle := bundles[key]
		ns, aliased := namespaceAliases[key]
		if !aliased {
			if _, ok := a.r.utils[key]; ok {
				a.overwrite(string(Utils), key)
			}
			a.r.utils[key] = bundle
			continue
		}
		target := a.r.namespaces[ns]
		for _, fname := range sortedKeys(bundle) {
			if _, ok := target[fname]; ok {
				a.overwrite(string(ns), fname)
			}
			target[fname] = bundle[fname]
		}
	}
}

func (a *applier) overwrite(category, key string) {
	a.r.logger.Warn().
		Str("module", a.module).
		Str("category", category).
		Str("key", key).
		Msg("overwriting existing value")
	a.emit(events.MergeOverwrite, map[string]any{"category": category, "key": key})
}

func (a *applier) tree(category string, incoming *types.Mapping) {
	if incoming == nil {
		return
	}
	target := a.r.trees[category]
	incoming.Range(func(key string, value types.Node) bool {
		existing, _ := target.Get(key)
		merged, outcome, err := Merge(existing, value)
		if err != nil {
			a.r.logger.Warn().
				Err(err).
				Str("module", a.module).
				Str("category", category).
				Str("key", key).
				Msg("skipping value that cannot be merged")
			a.emit(events.MergeMismatch, map[string]any{"category": category, "key": key})
			return true
		}
		if outcome == Overwritten {
			a.overwrite(category, key)
		}
		if outcome != Skipped {
			target.Set(key, merged)
		}
		return true
	})
}

func (a *applier) globals(d types.Descriptor) {
	if d.Config == nil {
		return
	}
	for _, name := range sortedKeys(d.Config.GlobalFunc) {
		a.bindGlobal(name, d.Config.GlobalFunc[name])
	}
	if len(d.Config.GlobalData) > 0 {
		a.bindGlobal(upperFirst(d.Name)+"Data", d.Database)
	}
}

// bindGlobal defines name unless it is already bound. Existing globals are
// never overwritten.
func (a *applier) bindGlobal(name string, value any) {
	if _, taken := a.r.globals[name]; taken {
		a.r.logger.Warn().
			Str("module", a.module).
			Str("key", name).
			Msg("global already defined")
		a.emit(events.GlobalSkipped, map[string]any{"key": name})
		return
	}
	a.r.globals[name] = value
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
