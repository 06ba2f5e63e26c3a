package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmpty           = errors.New("catalog: no unit types")
	ErrMissingBaseline = errors.New("catalog: baseline type not defined")
)

// Stats are the combat numbers of a unit at a given level.
type Stats struct {
	Attack int `json:"attack" yaml:"attack"`
	Health int `json:"health" yaml:"health"`
	Speed  int `json:"speed" yaml:"speed"`
}

// UnitType is one immutable catalog entry.
type UnitType struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Stats Stats  `json:"stats" yaml:"stats"`
	Cost  int    `json:"cost" yaml:"cost"`
}

// Power is the level-1 strength score of the type.
func (t UnitType) Power() int { return t.Stats.Attack + t.Stats.Health }

// Catalog is a read-only lookup of unit types. It is built once and passed
// to every component that needs it.
type Catalog struct {
	types    map[string]UnitType
	ids      []string
	baseline string
}

type fileFormat struct {
	Baseline string     `json:"baseline" yaml:"baseline"`
	Units    []UnitType `json:"units" yaml:"units"`
}

// New validates the given types and builds a catalog.
func New(baseline string, types []UnitType) (*Catalog, error) {
	if len(types) == 0 {
		return nil, ErrEmpty
	}
	c := &Catalog{
		types:    make(map[string]UnitType, len(types)),
		baseline: baseline,
	}
	for _, t := range types {
		if t.ID == "" {
			return nil, errors.New("catalog: unit type without id")
		}
		if _, dup := c.types[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate unit type %q", t.ID)
		}
		if t.Stats.Attack <= 0 || t.Stats.Health <= 0 {
			return nil, fmt.Errorf("catalog: unit type %q needs positive attack and health", t.ID)
		}
		if t.Cost < 0 {
			return nil, fmt.Errorf("catalog: unit type %q has negative cost", t.ID)
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		c.types[t.ID] = t
		c.ids = append(c.ids, t.ID)
	}
	if _, ok := c.types[baseline]; !ok {
		return nil, ErrMissingBaseline
	}
	sort.Strings(c.ids)
	return c, nil
}

// Load reads a catalog file. The format is picked from the extension:
// .yaml/.yml or .json.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileFormat
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &f)
	case ".json":
		err = json.Unmarshal(raw, &f)
	default:
		return nil, fmt.Errorf("catalog: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return New(f.Baseline, f.Units)
}

// Default is the stock roster of the imperial army.
func Default() *Catalog {
	c, err := New("soldier", []UnitType{
		{ID: "soldier", Name: "Soldier", Stats: Stats{Attack: 10, Health: 50, Speed: 5}, Cost: 50},
		{ID: "archer", Name: "Archer", Stats: Stats{Attack: 15, Health: 30, Speed: 5}, Cost: 75},
		{ID: "spearman", Name: "Spearman", Stats: Stats{Attack: 12, Health: 60, Speed: 4}, Cost: 80},
		{ID: "knight", Name: "Knight", Stats: Stats{Attack: 20, Health: 100, Speed: 6}, Cost: 150},
		{ID: "cataphract", Name: "Cataphract", Stats: Stats{Attack: 30, Health: 150, Speed: 7}, Cost: 300},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the unit type with the given id.
func (c *Catalog) Get(id string) (UnitType, bool) {
	t, ok := c.types[id]
	return t, ok
}

// IDs returns every type id in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Types returns every unit type, sorted by id.
func (c *Catalog) Types() []UnitType {
	out := make([]UnitType, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.types[id])
	}
	return out
}

func (c *Catalog) Baseline() UnitType { return c.types[c.baseline] }

func (c *Catalog) Len() int { return len(c.ids) }
