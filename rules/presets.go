package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var embeddedPresets []byte

var ErrPresetNotFound = errors.New("scoring preset not found")

// Presets maps a lower-case preset name to validated rules.
type Presets map[string]ScoringRules

// LoadPresets decodes a YAML document of named rule sets and validates each one.
func LoadPresets(r io.Reader) (Presets, error) {
	raw := make(map[string]ScoringRules)
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode scoring presets: %w", err)
	}
	presets := make(Presets, len(raw))
	for name, rr := range raw {
		valid, err := Validate(rr)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		presets[strings.ToLower(strings.TrimSpace(name))] = valid
	}
	return presets, nil
}

// DefaultPresets returns the presets shipped with the binary.
func DefaultPresets() Presets {
	p, err := LoadPresets(strings.NewReader(string(embeddedPresets)))
	if err != nil {
		panic(fmt.Sprintf("embedded scoring presets are invalid: %v", err))
	}
	return p
}

// Merge returns a copy of p overlaid with other.
func (p Presets) Merge(other Presets) Presets {
	out := make(Presets, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (p Presets) Preset(name string) (ScoringRules, error) {
	r, ok := p[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ScoringRules{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	r.TieBreakers = append([]TieBreaker(nil), r.TieBreakers...)
	return r, nil
}

func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
