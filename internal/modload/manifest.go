package modload

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/era/pkg/types"
)

// ManifestFile is the name of a package's descriptor file.
const ManifestFile = "module.yaml"

// Manifest is the decoded module.yaml of a content package.
type Manifest struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	ArrayTags   []string `yaml:"array_tags"`
	// GlobalData binds <Name>Data to the package database when set.
	GlobalData bool `yaml:"global_data"`
	// Setup holds inline setup values. Files under setup/ are merged on top.
	Setup yaml.Node `yaml:"setup"`
}

// ParseManifest decodes module.yaml content.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return m, nil
}

// SetupValues converts the inline setup block into a mapping, keeping the
// key order of the file.
func (m Manifest) SetupValues() (*types.Mapping, error) {
	if m.Setup.Kind == 0 {
		return types.NewMapping(), nil
	}
	n, err := fromYAML(&m.Setup)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	mapping, ok := n.(*types.Mapping)
	if !ok {
		return nil, fmt.Errorf("setup must be a mapping, got %s: %w", kindOf(n), types.ErrInvalidDescriptor)
	}
	return mapping, nil
}

func kindOf(n types.Node) string {
	if n == nil {
		return "null"
	}
	return n.Kind().String()
}

// fromYAML converts a yaml.v3 node tree into a node, preserving mapping
// order.
func fromYAML(n *yaml.Node) (types.Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.SequenceNode:
		seq := make(types.Sequence, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.MappingNode:
		m := types.NewMapping()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return m, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}
	return nil, fmt.Errorf("line %d: unexpected yaml node: %w", n.Line, types.ErrInvalidData)
}

func scalarFromYAML(n *yaml.Node) (types.Node, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return types.Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			// Out-of-range integers and the like stay text.
			return types.String(n.Value), nil
		}
		if _, err := strconv.ParseFloat(n.Value, 64); err != nil && n.ShortTag() == "!!float" {
			// .inf and .nan decode but are not numbers here.
			return types.String(n.Value), nil
		}
		return types.Number(f), nil
	}
	return types.String(n.Value), nil
}
