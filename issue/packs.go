package issue

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed packs/*.yaml
var packFS embed.FS

// packDoc mirrors the YAML pack format. Variants and rules reuse the
// domain types directly; their yaml tags define the file format.
type packDoc struct {
	Name     string    `yaml:"name"`
	Version  string    `yaml:"version"`
	Variants []Variant `yaml:"variants"`
	Rules    RuleSet   `yaml:"rules"`
}

// ParsePack decodes one template pack definition. Unknown keys are
// rejected so a typo in a pack file fails loudly instead of silently
// falling back to rule defaults.
func ParsePack(data []byte) (*TemplatePack, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc packDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("pack: decode: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("pack: name is required")
	}
	if len(doc.Variants) == 0 {
		return nil, fmt.Errorf("pack %q: at least one variant is required", doc.Name)
	}

	seen := make(map[string]bool, len(doc.Variants))
	for i, v := range doc.Variants {
		if v.ID == "" {
			return nil, fmt.Errorf("pack %q: variants[%d].id is required", doc.Name, i)
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("pack %q: duplicate variant id %q", doc.Name, v.ID)
		}
		seen[v.ID] = true
		if v.Columns < 1 || v.Columns > 3 {
			return nil, fmt.Errorf("pack %q: variant %q: columns %d outside 1..3", doc.Name, v.ID, v.Columns)
		}
		if v.Body != nil && v.Body.FontMax < v.Body.FontMin {
			return nil, fmt.Errorf("pack %q: variant %q: font_max < font_min", doc.Name, v.ID)
		}
	}

	t := doc.Rules.Typography
	if t.FontMin <= 0 || t.FontMax < t.FontMin {
		return nil, fmt.Errorf("pack %q: invalid typography rules", doc.Name)
	}
	if t.LineHeightMin <= 0 || t.LineHeightMax < t.LineHeightMin {
		return nil, fmt.Errorf("pack %q: invalid line height rules", doc.Name)
	}

	return &TemplatePack{
		Name:     doc.Name,
		Version:  doc.Version,
		Variants: doc.Variants,
		Rules:    doc.Rules,
	}, nil
}

// BuiltinPacks returns the packs shipped with the binary, sorted by name.
// The first one is the default active pack when the repository is empty.
func BuiltinPacks() ([]*TemplatePack, error) {
	entries, err := fs.Glob(packFS, "packs/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	var packs []*TemplatePack
	for _, name := range entries {
		data, err := packFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		p, err := ParsePack(data)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", name, err)
		}
		packs = append(packs, p)
	}
	return packs, nil
}
