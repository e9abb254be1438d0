// Package modload reads content packages from disk and turns them into
// module descriptors.
//
// A package is a directory:
//
//	module.yaml          name, description, version, array_tags, global_data, setup
//	data/<key>.csv       merged into the data tree under <key>
//	setup/<key>.table    merged into the setup tree
//	database/<key>.xml   stored as the package database
//	language/<tag>/...   merged into the language tree under the BCP 47 tag
//	templates/<path>.txt added to the template library when applied
//
// Nested directories below a category extend the key with dots, so
// data/npc/stats.csv lands at data.npc.stats.
package modload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/era/internal/content"
	"github.com/mesh-intelligence/era/internal/csvload"
	"github.com/mesh-intelligence/era/internal/events"
	"github.com/mesh-intelligence/era/internal/registry"
	"github.com/mesh-intelligence/era/internal/tablefmt"
	"github.com/mesh-intelligence/era/internal/template"
	"github.com/mesh-intelligence/era/internal/treepath"
	"github.com/mesh-intelligence/era/internal/xmlnorm"
	"github.com/mesh-intelligence/era/pkg/types"
)

// Directory names inside a package.
const (
	dirData      = "data"
	dirSetup     = "setup"
	dirDatabase  = "database"
	dirLanguage  = "language"
	dirTemplates = "templates"
)

// Loader builds descriptors from package directories.
type Loader struct {
	store     content.Store
	templates *template.Library
	logger    zerolog.Logger
	bus       *events.Bus
	arrayTags []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithBus sets the bus ingest issues are published on.
func WithBus(bus *events.Bus) Option {
	return func(l *Loader) { l.bus = bus }
}

// WithArrayTags adds XML tags that always become sequences, on top of the
// tags each package declares.
func WithArrayTags(tags ...string) Option {
	return func(l *Loader) { l.arrayTags = append(l.arrayTags, tags...) }
}

// WithTemplates sets the library package templates are added to.
func WithTemplates(lib *template.Library) Option {
	return func(l *Loader) { l.templates = lib }
}

// New returns a loader that keeps raw package text in store.
func New(store content.Store, opts ...Option) *Loader {
	l := &Loader{store: store, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReadDir reads the package in dir. The directory name is the module name
// unless module.yaml sets one.
func (l *Loader) ReadDir(ctx context.Context, dir string) (types.Descriptor, error) {
	return l.Read(ctx, filepath.Base(dir), os.DirFS(dir))
}

// Read reads a package from fsys. name is used when module.yaml is absent
// or leaves the name empty.
func (l *Loader) Read(ctx context.Context, name string, fsys fs.FS) (types.Descriptor, error) {
	manifest, err := readManifest(fsys)
	if err != nil {
		return types.Descriptor{}, err
	}
	if manifest.Name == "" {
		manifest.Name = name
	}
	setup, err := manifest.SetupValues()
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("package %s: %w", manifest.Name, err)
	}

	blocks, err := content.LoadFS(l.store, fsys, manifest.Name)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("package %s: %w", manifest.Name, err)
	}

	p := &pkg{
		loader:    l,
		module:    manifest.Name,
		arrayTags: append(append([]string(nil), l.arrayTags...), manifest.ArrayTags...),
		data:      types.NewMapping(),
		setup:     setup,
		database:  types.NewMapping(),
		language:  types.NewMapping(),
	}
	for _, block := range blocks {
		rel := strings.TrimPrefix(block, manifest.Name+"/")
		if err := p.add(ctx, block, rel); err != nil {
			return types.Descriptor{}, fmt.Errorf("package %s: %w", manifest.Name, err)
		}
	}

	d := types.Descriptor{
		Name:        manifest.Name,
		Description: manifest.Description,
		Version:     manifest.Version,
		Data:        p.data,
		Setup:       p.setup,
		Language:    p.language,
		Database:    p.database,
	}
	if manifest.GlobalData && p.database.Len() > 0 {
		globals := make(map[string]types.Node, p.database.Len())
		p.database.Range(func(k string, v types.Node) bool {
			globals[k] = v
			return true
		})
		d.Config = &types.ModuleConfig{GlobalData: globals}
	}
	if len(p.templates) > 0 && l.templates != nil {
		d.Apply = p.installTemplates
	}
	l.logger.Debug().
		Str("module", d.Name).
		Int("blocks", len(blocks)).
		Int("templates", len(p.templates)).
		Msg("package read")
	return d, nil
}

func readManifest(fsys fs.FS) (Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read %s: %w", ManifestFile, err)
	}
	return ParseManifest(data)
}

// LoadAll reads every package directory directly under root, registers
// them, then applies them in directory-name order. Packages whose name is
// already registered are skipped with a warning. It returns the names of
// the modules it applied.
func (l *Loader) LoadAll(ctx context.Context, reg *registry.Registry, root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		name, err := packageName(dir)
		if err != nil {
			return names, err
		}
		if _, exists := reg.Module(name); exists {
			l.logger.Warn().Str("module", name).Str("dir", e.Name()).Msg("skipping duplicate package")
			continue
		}
		d, err := l.ReadDir(ctx, dir)
		if err != nil {
			return names, err
		}
		if err := reg.Register(ctx, d); err != nil {
			if errors.Is(err, types.ErrDuplicateModule) {
				l.logger.Warn().Str("module", d.Name).Str("dir", e.Name()).Msg("skipping duplicate package")
				continue
			}
			return names, err
		}
		names = append(names, d.Name)
	}

	applied := make([]string, 0, len(names))
	for _, name := range names {
		if err := reg.Apply(ctx, name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// packageName returns the module name of the package in dir without
// reading its content.
func packageName(dir string) (string, error) {
	m, err := readManifest(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	if m.Name == "" {
		return filepath.Base(dir), nil
	}
	return m.Name, nil
}

// ParseFile parses text according to the extension of file: .csv, .xml,
// .table or .tbl. Line-level problems are returned as issues.
func ParseFile(file, text string, arrayTags ...string) (types.Node, []types.Issue, error) {
	switch strings.ToLower(path.Ext(file)) {
	case ".csv":
		n, issues := csvload.Load(text)
		return n, issues, nil
	case ".table", ".tbl":
		n, issues := tablefmt.Parse(text)
		return n, issues, nil
	case ".xml":
		m, err := xmlnorm.LoadString(text, arrayTags...)
		if err != nil {
			return nil, nil, err
		}
		return unwrapRoot(m), nil, nil
	}
	return nil, nil, fmt.Errorf("%s: %w", file, types.ErrUnsupportedFormat)
}

// unwrapRoot drops the document element so a file's key holds its content
// rather than a single-key mapping.
func unwrapRoot(m *types.Mapping) types.Node {
	if m.Len() != 1 {
		return m
	}
	v, _ := m.Get(m.Keys()[0])
	return v
}

// pkg accumulates the trees of one package while its files are read.
type pkg struct {
	loader    *Loader
	module    string
	arrayTags []string

	data      *types.Mapping
	setup     *types.Mapping
	database  *types.Mapping
	language  *types.Mapping
	templates []templateFile
}

// templateFile holds template text captured when the package is read, so
// later writes to the shared store cannot change what Apply installs.
type templateFile struct {
	path string
	text string
}

// add routes one content block by its path inside the package.
func (p *pkg) add(ctx context.Context, block, rel string) error {
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		if rel != ManifestFile {
			p.loader.logger.Debug().Str("module", p.module).Str("file", rel).Msg("ignoring top-level file")
		}
		return nil
	}

	var target **types.Mapping
	keyParts := parts[1:]
	switch parts[0] {
	case dirData:
		target = &p.data
	case dirSetup:
		target = &p.setup
	case dirDatabase:
		target = &p.database
	case dirLanguage:
		if len(parts) < 3 {
			p.loader.logger.Warn().Str("module", p.module).Str("file", rel).Msg("language file outside a tag directory")
			return nil
		}
		tag, err := language.Parse(parts[1])
		if err != nil {
			p.loader.logger.Warn().Err(err).Str("module", p.module).Str("tag", parts[1]).Msg("skipping invalid language tag")
			return nil
		}
		target = &p.language
		keyParts = append([]string{tag.String()}, parts[2:]...)
	case dirTemplates:
		text, err := p.loader.store.Text(block)
		if err != nil {
			return err
		}
		p.templates = append(p.templates, templateFile{path: keyPath(parts[1:]), text: text})
		return nil
	default:
		p.loader.logger.Debug().Str("module", p.module).Str("file", rel).Msg("ignoring file outside content directories")
		return nil
	}

	text, err := p.loader.store.Text(block)
	if err != nil {
		return err
	}
	node, issues, err := ParseFile(rel, text, p.arrayTags...)
	if errors.Is(err, types.ErrUnsupportedFormat) {
		p.loader.logger.Warn().Str("module", p.module).Str("file", rel).Msg("skipping file with unsupported format")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	for _, issue := range issues {
		p.issue(ctx, rel, issue)
	}

	root, err := treepath.Set(*target, keyPath(keyParts), node)
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	*target = root
	return nil
}

func (p *pkg) issue(ctx context.Context, file string, issue types.Issue) {
	p.loader.logger.Warn().
		Err(issue.Err).
		Str("module", p.module).
		Str("file", file).
		Int("line", issue.Line).
		Str("text", issue.Text).
		Msg("skipping line")
	p.loader.bus.Publish(ctx, events.Event{
		Name:   events.IngestIssue,
		Module: p.module,
		Data:   map[string]any{"file": file, "line": issue.Line, "error": issue.Error()},
	})
}

// installTemplates is the package's apply action.
func (p *pkg) installTemplates(context.Context) error {
	for _, t := range p.templates {
		text := strings.TrimRight(strings.ReplaceAll(t.text, "\r\n", "\n"), "\n")
		if err := p.loader.templates.Add(t.path, strings.Split(text, "\n")...); err != nil {
			return err
		}
	}
	return nil
}

// keyPath joins path segments with dots after dropping the file extension
// from the last one.
func keyPath(parts []string) string {
	out := append([]string(nil), parts...)
	last := out[len(out)-1]
	out[len(out)-1] = strings.TrimSuffix(last, path.Ext(last))
	return strings.Join(out, ".")
}
