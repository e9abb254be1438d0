package modload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/era/pkg/types"
)

func TestManifestSetupScalars(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: demo
setup:
  ratio: 1.5
  count: 3
  enabled: true
  empty: ~
  infinite: .inf
  quoted: "7"
  anchor: &base {x: 1}
  alias: *base
`))
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Name)

	setup, err := m.SetupValues()
	require.NoError(t, err)
	assert.Equal(t, []string{"ratio", "count", "enabled", "empty", "infinite", "quoted", "anchor", "alias"}, setup.Keys())

	get := func(k string) types.Node {
		v, _ := setup.Get(k)
		return v
	}
	assert.Equal(t, types.Number(1.5), get("ratio"))
	assert.Equal(t, types.Number(3), get("count"))
	assert.Equal(t, types.Bool(true), get("enabled"))
	assert.Nil(t, get("empty"))
	assert.Equal(t, types.String(".inf"), get("infinite"))
	assert.Equal(t, types.String("7"), get("quoted"))
	assert.Equal(t, types.MappingOf("x", 1), get("alias"))
}

func TestManifestWithoutSetup(t *testing.T) {
	m, err := ParseManifest([]byte("name: bare\n"))
	require.NoError(t, err)
	setup, err := m.SetupValues()
	require.NoError(t, err)
	assert.Zero(t, setup.Len())
}
