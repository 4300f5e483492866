// Package catalog prices BOM lines against a static equipment catalog using
// a text-overlap score.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/cip-designer/internal/cip"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// MatchThreshold is the minimum score a catalog entry needs before its price
// is attached to a BOM line.
const MatchThreshold = 1.5

var keywords = []string{"pump", "tank", "heater", "filter", "flowmeter", "pressure", "valve", "control"}

// Entry is one priced catalog item. UnitCost is per Unit (each, gallon, kW,
// linear_ft).
type Entry struct {
	Key      string  `yaml:"key" json:"key"`
	Item     string  `yaml:"item" json:"item"`
	Spec     string  `yaml:"spec" json:"spec"`
	UnitCost float64 `yaml:"unitCost" json:"unitCost"`
	Unit     string  `yaml:"unit" json:"unit,omitempty"`
	Vendor   string  `yaml:"vendor" json:"vendor,omitempty"`
	LeadTime string  `yaml:"leadTime" json:"leadTime,omitempty"`
}

type catalogFile struct {
	Entries []Entry `yaml:"entries"`
}

// Price is the outcome of a lookup. Both fields are nil when no entry
// matched with enough confidence.
type Price struct {
	UnitCost     *float64 `json:"unitCost"`
	ExtendedCost *float64 `json:"extendedCost"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	entries []Entry
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Load reads a YAML catalog from path. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(blob)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(blob []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(blob, &f); err != nil {
		return nil, err
	}
	if len(f.Entries) == 0 {
		return nil, errors.New("catalog has no entries")
	}
	seen := map[string]bool{}
	for i, e := range f.Entries {
		if strings.TrimSpace(e.Item) == "" || strings.TrimSpace(e.Spec) == "" {
			return nil, fmt.Errorf("entry %d: item and spec are required", i)
		}
		if e.UnitCost < 0 {
			return nil, fmt.Errorf("entry %d (%s): unitCost must be >= 0", i, e.Item)
		}
		if e.Key != "" {
			if seen[e.Key] {
				return nil, fmt.Errorf("entry %d: duplicate key %q", i, e.Key)
			}
			seen[e.Key] = true
		}
	}
	return &Catalog{entries: f.Entries}, nil
}

// Entries returns a copy of the catalog.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func score(item, spec string, e Entry) float64 {
	item = strings.ToLower(item)
	spec = strings.ToLower(spec)
	s := 0.0
	if strings.Contains(item, strings.ToLower(e.Item)) {
		s++
	}
	if strings.Contains(spec, strings.ToLower(e.Spec)) {
		s++
	}
	lineText := item + " " + spec
	entryText := strings.ToLower(e.Item + " " + e.Spec)
	for _, kw := range keywords {
		if strings.Contains(lineText, kw) && strings.Contains(entryText, kw) {
			s += 0.5
			break
		}
	}
	return s
}

// Match returns the best-scoring entry. ok is false when the best score is
// below MatchThreshold. Ties keep the earlier entry.
func (c *Catalog) Match(item, spec string) (best Entry, bestScore float64, ok bool) {
	found := false
	for _, e := range c.entries {
		s := score(item, spec, e)
		if s > bestScore {
			best, bestScore, found = e, s, true
		}
	}
	if !found || bestScore < MatchThreshold {
		return Entry{}, bestScore, false
	}
	return best, bestScore, true
}

// PriceLine looks up a BOM line and applies quantity discounts: 10% off tanks
// when qty > 1 and 15% off filters when qty > 10.
func (c *Catalog) PriceLine(item, spec string, qty int) Price {
	e, _, ok := c.Match(item, spec)
	if !ok {
		return Price{}
	}
	unit := e.UnitCost
	lowerItem := strings.ToLower(item)
	if strings.Contains(lowerItem, "tank") && qty > 1 {
		unit *= 0.9
	}
	if strings.Contains(lowerItem, "filter") && qty > 10 {
		unit *= 0.85
	}
	ext := unit * float64(qty)
	return Price{UnitCost: &unit, ExtendedCost: &ext}
}

// PriceBOM returns a copy of lines with catalog costs attached. Unmatched
// lines carry nil costs.
func (c *Catalog) PriceBOM(lines []cip.BomLine) []cip.BomLine {
	out := make([]cip.BomLine, len(lines))
	for i, l := range lines {
		p := c.PriceLine(l.Item, l.Specification, l.Qty)
		l.UnitCost = p.UnitCost
		l.ExtendedCost = p.ExtendedCost
		out[i] = l
	}
	return out
}
