package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/alikendir0/backend-simulated-radar-simulator/model"
)

var (
	// ErrMetadataExists indicates a record with the same name is already present.
	ErrMetadataExists = errors.New("aircraft metadata already exists")
	// ErrMetadataInvalid indicates a record without a name.
	ErrMetadataInvalid = errors.New("aircraft metadata requires a name")
)

var instanceSuffix = regexp.MustCompile(`(?i)\s*Instance:\s*\d+\s*$`)

// DisplayName strips the " Instance: N" suffix from a generated aircraft ID,
// leaving the catalog name it was generated from.
func DisplayName(aircraftID string) string {
	return strings.TrimSpace(instanceSuffix.ReplaceAllString(aircraftID, ""))
}

// Catalog is an in-memory, thread-safe store of aircraft metadata keyed by
// case-insensitive name. It is read-only from the simulation's point of view.
type Catalog struct {
	mu      sync.RWMutex
	records map[string]*model.Metadata
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{records: make(map[string]*model.Metadata)}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add inserts a record. It returns an error if the name is empty or already
// present.
func (c *Catalog) Add(m *model.Metadata) error {
	if m == nil || key(m.Name) == "" {
		return ErrMetadataInvalid
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(m.Name)
	if _, exists := c.records[k]; exists {
		return fmt.Errorf("%q: %w", m.Name, ErrMetadataExists)
	}
	rec := *m
	rec.Parts = append([]string(nil), m.Parts...)
	if rec.Category == "" {
		rec.Category = model.CategoryUnknown
	}
	if rec.Class == "" {
		rec.Class = model.ClassUnknown
	}
	c.records[k] = &rec
	return nil
}

// Lookup returns a copy of the record for name. Unknown names yield an empty
// record and false.
func (c *Catalog) Lookup(name string) (model.Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[key(name)]
	if !ok {
		return model.Metadata{}, false
	}
	out := *rec
	out.Parts = append([]string(nil), rec.Parts...)
	return out, true
}

// LookupAircraft resolves a generated aircraft ID to its catalog record.
func (c *Catalog) LookupAircraft(aircraftID string) (model.Metadata, bool) {
	return c.Lookup(DisplayName(aircraftID))
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// List returns a snapshot of all records sorted by name.
func (c *Catalog) List() []model.Metadata {
	c.mu.RLock()
	res := make([]model.Metadata, 0, len(c.records))
	for _, rec := range c.records {
		res = append(res, *rec)
	}
	c.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// LoadJSON adds every record from a JSON array. It stops at the first
// invalid or duplicate record and returns how many were added.
func (c *Catalog) LoadJSON(r io.Reader) (int, error) {
	var recs []*model.Metadata
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return 0, fmt.Errorf("decode catalog: %w", err)
	}
	added := 0
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		rec.Category = model.ParseCategory(string(rec.Category))
		rec.Class = model.ParseClass(string(rec.Class))
		if err := c.Add(rec); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// LoadFile opens path and calls LoadJSON.
func (c *Catalog) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()
	return c.LoadJSON(f)
}

// DefaultRecords describes the aircraft generated by the default population.
func DefaultRecords() []*model.Metadata {
	return []*model.Metadata{
		{
			ID:               "c20a-afrc",
			Name:             "C20A - AFRC",
			Category:         model.CategoryCivilian,
			Class:            model.ClassPlane,
			Image:            "/images/icons/c20a.png",
			RecordedTopSpeed: 851,
		},
		{
			ID:               "as350",
			Name:             "Eurocopter AS350 Écureuil",
			Category:         model.CategoryPolice,
			Class:            model.ClassHelicopter,
			Image:            "/images/icons/as350.png",
			RecordedTopSpeed: 287,
		},
		{
			ID:               "f16d",
			Name:             "F-16D",
			Category:         model.CategoryMilitary,
			Class:            model.ClassPlane,
			Image:            "/images/icons/f16d.png",
			RecordedTopSpeed: 2414,
		},
	}
}

// NewDefaultCatalog returns a catalog seeded with DefaultRecords.
func NewDefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, rec := range DefaultRecords() {
		_ = c.Add(rec)
	}
	return c
}
