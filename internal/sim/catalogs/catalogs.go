// Package catalogs loads the static item and land class catalogs that
// datasets are checked against before import.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"agrifood.ai/internal/sim/fbs"
)

var ErrMismatch = errors.New("catalog mismatch")

type Catalogs struct {
	Items       ItemCatalog
	LandClasses LandClassCatalog
}

type ItemCatalog struct {
	Codes       []int
	Defs        map[int]fbs.Item
	Digest      string
	CodesDigest string
}

type LandClassCatalog struct {
	Names  []string
	Defs   map[string]LandClassDef
	Digest string
}

// LandClassDef describes one land cover class. Derived classes are created
// by the model and never appear in a baseline raster.
type LandClassDef struct {
	Name          string  `json:"name"`
	Kind          string  `json:"kind"` // "agricultural","woodland","technology","agroecology"
	Derived       bool    `json:"derived,omitempty"`
	Sequestration float64 `json:"sequestration,omitempty"` // t CO2e/ha/yr
}

var landKinds = map[string]bool{"agricultural": true, "woodland": true, "technology": true, "agroecology": true}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadLandClasses(filepath.Join(configDir, "land_classes.json"), &c.LandClasses); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []fbs.Item
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = make(map[int]fbs.Item, len(defs))
	for _, d := range defs {
		if d.Code <= 0 {
			return fmt.Errorf("items.json: bad code %d", d.Code)
		}
		if d.Name == "" || d.Group == "" {
			return fmt.Errorf("items.json: item %d: missing name or group", d.Code)
		}
		switch d.Origin {
		case fbs.OriginAnimal, fbs.OriginVegetal, fbs.OriginCultured:
		default:
			return fmt.Errorf("items.json: item %d: unknown origin %q", d.Code, d.Origin)
		}
		if _, dup := out.Defs[d.Code]; dup {
			return fmt.Errorf("items.json: duplicate code %d", d.Code)
		}
		out.Defs[d.Code] = d
	}

	out.Codes = make([]int, 0, len(out.Defs))
	for code := range out.Defs {
		out.Codes = append(out.Codes, code)
	}
	sort.Ints(out.Codes)
	codesJSON, _ := json.Marshal(out.Codes)
	out.CodesDigest = sha256Hex(codesJSON)
	return nil
}

func loadLandClasses(path string, out *LandClassCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []LandClassDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("land_classes.json: %w", err)
	}
	out.Defs = make(map[string]LandClassDef, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("land_classes.json: empty name")
		}
		if !landKinds[d.Kind] {
			return fmt.Errorf("land_classes.json: %s: unknown kind %q", d.Name, d.Kind)
		}
		if d.Sequestration < 0 {
			return fmt.Errorf("land_classes.json: %s: negative sequestration", d.Name)
		}
		out.Defs[d.Name] = d
		out.Names = append(out.Names, d.Name)
	}
	sort.Strings(out.Names)
	return nil
}

// CheckItems reports the first item whose labels differ from the catalog.
func (c *Catalogs) CheckItems(items []fbs.Item) error {
	for _, it := range items {
		def, ok := c.Items.Defs[it.Code]
		if !ok {
			return fmt.Errorf("%w: item %d not in catalog", ErrMismatch, it.Code)
		}
		if def.Group != it.Group || def.Origin != it.Origin {
			return fmt.Errorf("%w: item %d is %s/%s, catalog has %s/%s",
				ErrMismatch, it.Code, it.Origin, it.Group, def.Origin, def.Group)
		}
	}
	return nil
}

// CheckClasses rejects unknown classes and classes only the model creates.
func (c *Catalogs) CheckClasses(classes []string) error {
	for _, name := range classes {
		def, ok := c.LandClasses.Defs[name]
		if !ok {
			return fmt.Errorf("%w: land class %q not in catalog", ErrMismatch, name)
		}
		if def.Derived {
			return fmt.Errorf("%w: land class %q is derived", ErrMismatch, name)
		}
	}
	return nil
}

// Digests is the stable fingerprint stored alongside imported datasets.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		"items":        c.Items.Digest,
		"item_codes":   c.Items.CodesDigest,
		"land_classes": c.LandClasses.Digest,
	}
}
