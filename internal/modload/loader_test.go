package modload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/era/internal/content"
	"github.com/mesh-intelligence/era/internal/events"
	"github.com/mesh-intelligence/era/internal/registry"
	"github.com/mesh-intelligence/era/internal/template"
	"github.com/mesh-intelligence/era/internal/treepath"
	"github.com/mesh-intelligence/era/pkg/types"
)

const coreManifest = `name: core
description: Core content
version: 1.2.0
array_tags: [item]
global_data: true
setup:
  mode: story
  difficulty: 2
  flags: [a, b]
`

func corePackage() fstest.MapFS {
	return fstest.MapFS{
		"module.yaml":             {Data: []byte(coreManifest)},
		"README.md":               {Data: []byte("ignored")},
		"data/stats.csv":          {Data: []byte("hp,10\nhp,12\nmp,5\n")},
		"data/npc/names.csv":      {Data: []byte("Id,Name\n1,Ann\n2,Bob,extra\n")},
		"data/notes.md":           {Data: []byte("# not content")},
		"setup/weapons.table":     {Data: []byte("@Weapons\n#id,dmg\n1,10\n")},
		"database/items.xml":      {Data: []byte("<items><item><name>Sword</name><price>5</price></item></items>")},
		"language/en-us/ui.csv":   {Data: []byte("menu.start,Start\n")},
		"language/bad!tag/ui.csv": {Data: []byte("menu.start,Nope\n")},
		"templates/greeting.txt":  {Data: []byte("Hello {0}\n")},
		"templates/mail/subj.txt": {Data: []byte("Re: {0}")},
		".hidden/data/secret.csv": {Data: []byte("x,1\n")},
	}
}

func lookup(t *testing.T, root types.Node, path string) types.Node {
	t.Helper()
	n, err := treepath.Get(root, path)
	require.NoError(t, err, path)
	return n
}

func TestReadPackage(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var issues []events.Event
	bus.Subscribe(events.IngestIssue, func(_ context.Context, e events.Event) error {
		issues = append(issues, e)
		return nil
	})
	store := content.NewMemStore()
	l := New(store, WithBus(bus))

	d, err := l.Read(context.Background(), "fallback", corePackage())
	require.NoError(t, err)

	assert.Equal(t, "core", d.Name)
	assert.Equal(t, "Core content", d.Description)
	assert.Equal(t, "1.2.0", d.Version)

	assert.Equal(t, types.Sequence{types.Number(10), types.Number(12)}, lookup(t, d.Data, "stats.hp"))
	assert.Equal(t, types.Number(5), lookup(t, d.Data, "stats.mp"))
	assert.Equal(t, types.String("Ann"), lookup(t, d.Data, "npc.names.0.Name"))
	assert.False(t, d.Data.Has("notes"))

	assert.Equal(t, []string{"mode", "difficulty", "flags", "weapons"}, d.Setup.Keys())
	assert.Equal(t, types.Number(2), lookup(t, d.Setup, "difficulty"))
	assert.Equal(t, types.Number(10), lookup(t, d.Setup, "weapons.Weapons.0.dmg"))

	assert.Equal(t, types.String("Sword"), lookup(t, d.Database, "items.item.0.name"))
	assert.Equal(t, types.Number(5), lookup(t, d.Database, "items.item.0.price"))

	assert.Equal(t, []string{"en-US"}, d.Language.Keys())
	assert.Equal(t, types.String("Start"), lookup(t, d.Language, "en-US.ui.menu.start"))

	require.NotNil(t, d.Config)
	assert.Contains(t, d.Config.GlobalData, "items")
	assert.Nil(t, d.Apply, "no template library configured")

	require.Len(t, issues, 1)
	assert.Equal(t, "core", issues[0].Module)
	assert.Equal(t, "data/npc/names.csv", issues[0].Data["file"])

	txt, err := store.Text("core/data/stats.csv")
	require.NoError(t, err)
	assert.Contains(t, txt, "hp,10")
	_, err = store.Text("core/.hidden/data/secret.csv")
	require.ErrorIs(t, err, content.ErrBlockNotFound)
}

func TestReadWithoutManifest(t *testing.T) {
	d, err := New(content.NewMemStore()).Read(context.Background(), "plain", fstest.MapFS{
		"data/a.csv": {Data: []byte("k,v\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, "plain", d.Name)
	assert.Nil(t, d.Config)
	assert.Equal(t, types.String("v"), lookup(t, d.Data, "a.k"))
}

func TestReadRejectsBadManifest(t *testing.T) {
	l := New(content.NewMemStore())
	_, err := l.Read(context.Background(), "x", fstest.MapFS{
		"module.yaml": {Data: []byte("name: [unclosed")},
	})
	require.Error(t, err)

	_, err = l.Read(context.Background(), "x", fstest.MapFS{
		"module.yaml": {Data: []byte("setup: [1, 2]\n")},
	})
	require.ErrorIs(t, err, types.ErrInvalidDescriptor)
}

func TestReadMalformedXML(t *testing.T) {
	_, err := New(content.NewMemStore()).Read(context.Background(), "x", fstest.MapFS{
		"data/broken.xml": {Data: []byte("<a><b></a>")},
	})
	require.ErrorIs(t, err, types.ErrMalformedXML)
}

func TestTemplatesInstalledOnApply(t *testing.T) {
	lib := template.NewLibrary(nil)
	store := content.NewMemStore()
	l := New(store, WithTemplates(lib))

	d, err := l.Read(context.Background(), "core", corePackage())
	require.NoError(t, err)
	require.NotNil(t, d.Apply)

	_, err = lib.Lookup("greeting")
	require.Error(t, err, "templates wait for apply")

	reg := registry.New()
	require.NoError(t, reg.Register(context.Background(), d))
	require.NoError(t, reg.Apply(context.Background(), "core"))

	out, err := lib.Output("@greeting", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann", out)

	out, err = lib.Output("@mail.subj", "Orders")
	require.NoError(t, err)
	assert.Equal(t, "Re: Orders", out)
}

func TestParseFile(t *testing.T) {
	n, issues, err := ParseFile("x.CSV", "a.b,1\n")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, types.Number(1), lookup(t, n, "a.b"))

	n, _, err = ParseFile("t.tbl", "#id\n7\n")
	require.NoError(t, err)
	assert.Equal(t, types.Number(7), lookup(t, n, "table0.0.id"))

	n, _, err = ParseFile("list.xml", "<list><li>1</li><li>2</li></list>")
	require.NoError(t, err)
	assert.Equal(t, types.Sequence{types.Number(1), types.Number(2)}, n)

	_, _, err = ParseFile("x.json", "{}")
	require.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"10-base/module.yaml":    "name: base\n",
		"10-base/data/tags.xml":  "<tags><li>1</li><li>2</li></tags>",
		"20-copy/module.yaml":    "name: base\n",
		"30-extra/data/tags.xml": "<tags><li>2</li><li>3</li></tags>",
		"notes.txt":              "not a package",
		".git/HEAD":              "ref",
	})

	var logs bytes.Buffer
	reg := registry.New()
	l := New(content.NewMemStore(), WithLogger(zerolog.New(&logs)))

	applied, err := l.LoadAll(context.Background(), reg, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "30-extra"}, applied)
	assert.Equal(t, []string{"base", "30-extra"}, reg.LoadOrder())
	assert.Contains(t, logs.String(), "skipping duplicate package")

	tags, err := reg.Lookup(types.CategoryData, "tags")
	require.NoError(t, err)
	assert.Equal(t, types.Sequence{types.Number(1), types.Number(2), types.Number(3)}, tags)
}

func TestLoadAllDuplicateKeepsAcceptedPackage(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"10-base/module.yaml":         "name: base\n",
		"10-base/templates/hello.txt": "Hello {0}\n",
		"10-base/data/stats.csv":      "hp,10\n",
		"20-copy/module.yaml":         "name: base\n",
		"20-copy/templates/hello.txt": "Bye {0}\n",
		"20-copy/data/stats.csv":      "hp,99\n",
	})

	store := content.NewMemStore()
	lib := template.NewLibrary(store)
	reg := registry.New()
	l := New(store, WithTemplates(lib))

	applied, err := l.LoadAll(context.Background(), reg, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, applied)

	txt, err := lib.Lookup("hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello {0}", txt)

	raw, err := store.Text("base/templates/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello {0}\n", raw)

	hp, err := reg.Lookup(types.CategoryData, "stats.hp")
	require.NoError(t, err)
	assert.Equal(t, types.Number(10), hp)
}

func TestLoadAllMissingDir(t *testing.T) {
	_, err := New(content.NewMemStore()).LoadAll(context.Background(), registry.New(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
