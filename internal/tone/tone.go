// Package tone holds the catalog of tone presets used to build provider prompts.
package tone

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset is one prompt-construction policy.
type Preset struct {
	ID      string   `yaml:"id" json:"id"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
	System  string   `yaml:"system" json:"-"`
	User    string   `yaml:"user" json:"-"`
}

// Placeholder is replaced with the caller's text in Preset.User.
const Placeholder = "{{text}}"

// Canonical preset ids.
const (
	CasualSlangy         = "casual-slangy"
	FriendlyProfessional = "friendly-professional"
	Formal               = "formal"
)

//go:embed presets.yaml
var builtin []byte

type document struct {
	Fallback string   `yaml:"fallback"`
	Presets  []Preset `yaml:"presets"`
}

// Catalog maps preset ids (and aliases) to presets. Immutable after Parse.
type Catalog struct {
	presets  map[string]Preset
	ids      []string
	fallback Preset
}

// Default returns the catalog built from the embedded presets.yaml.
// Panics if the embedded document is invalid.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("tone.Default: %v", err))
	}
	return c
}

// Parse builds a Catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tone.Parse: %w", err)
	}
	c := &Catalog{presets: make(map[string]Preset)}
	for _, p := range doc.Presets {
		if p.ID == "" {
			return nil, fmt.Errorf("tone.Parse: preset without id")
		}
		if strings.Count(p.User, Placeholder) != 1 {
			return nil, fmt.Errorf("tone.Parse: preset %q: user template needs exactly one %s", p.ID, Placeholder)
		}
		for _, key := range append([]string{p.ID}, p.Aliases...) {
			key = normalize(key)
			if _, dup := c.presets[key]; dup {
				return nil, fmt.Errorf("tone.Parse: duplicate preset key %q", key)
			}
			c.presets[key] = p
		}
		c.ids = append(c.ids, p.ID)
	}
	fb, ok := c.presets[normalize(doc.Fallback)]
	if !ok {
		return nil, fmt.Errorf("tone.Parse: fallback %q is not a preset", doc.Fallback)
	}
	c.fallback = fb
	return c, nil
}

// Resolve returns the preset for id. Unknown and empty ids resolve to the fallback.
func (c *Catalog) Resolve(id string) Preset {
	if p, ok := c.presets[normalize(id)]; ok {
		return p
	}
	return c.fallback
}

// Known reports whether id names a preset or alias.
func (c *Catalog) Known(id string) bool {
	_, ok := c.presets[normalize(id)]
	return ok
}

// IDs returns the canonical preset ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Fallback returns the preset used for unknown ids.
func (c *Catalog) Fallback() Preset { return c.fallback }

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
