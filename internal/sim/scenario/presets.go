package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named lever set, keyed by slider code.
type Preset struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Codes       map[string]float64 `yaml:"levers" json:"levers"`
}

func (p Preset) Levers() (Levers, error) {
	var l Levers
	codes := make([]string, 0, len(p.Codes))
	for c := range p.Codes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		if err := l.Set(c, p.Codes[c]); err != nil {
			return Levers{}, fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}
	if err := l.Validate(); err != nil {
		return Levers{}, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return l, nil
}

type Presets struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads a scenarios file. An empty path returns the bundled
// presets.
func LoadPresets(path string) (*Presets, error) {
	raw := defaultPresets
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var ps Presets
	if err := yaml.Unmarshal(raw, &ps); err != nil {
		return nil, fmt.Errorf("scenarios.yaml: %w", err)
	}
	if err := ps.Validate(); err != nil {
		return nil, fmt.Errorf("scenarios.yaml: %w", err)
	}
	return &ps, nil
}

func (ps *Presets) Validate() error {
	seen := make(map[string]bool, len(ps.Presets))
	for _, p := range ps.Presets {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("preset without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = true
		if _, err := p.Levers(); err != nil {
			return err
		}
	}
	return nil
}

func (ps *Presets) Names() []string {
	out := make([]string, len(ps.Presets))
	for i, p := range ps.Presets {
		out[i] = p.Name
	}
	return out
}

func (ps *Presets) Lookup(name string) (Levers, error) {
	for _, p := range ps.Presets {
		if p.Name == name {
			return p.Levers()
		}
	}
	return Levers{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}
