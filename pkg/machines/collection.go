package machines

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/machinemap/machinemap/pkg/errors"
)

// Feature is one GeoJSON feature wrapping a machine record. Problem-set
// entries additionally carry a free-text problem explanation.
type Feature struct {
	Type       string   `json:"type"`
	Geometry   Geometry `json:"geometry"`
	Properties Record   `json:"properties"`
	Problem    string   `json:"problem,omitempty"`
}

// Geometry is the GeoJSON point geometry of a feature.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
}

// NewFeature wraps a record in a GeoJSON feature.
func NewFeature(r Record) *Feature {
	return &Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Point", Coordinates: r.Coordinates},
		Properties: r,
	}
}

// Record returns the feature's record with the geometry folded back in.
func (f *Feature) Record() Record {
	r := f.Properties
	r.Coordinates = f.Geometry.Coordinates
	return r
}

// Collection is a GeoJSON FeatureCollection, the persisted form of the
// device, server and problem datasets.
type Collection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// NewCollection returns an empty feature collection.
func NewCollection() *Collection {
	return &Collection{Type: "FeatureCollection", Features: []*Feature{}}
}

// Append adds a record to the collection.
func (c *Collection) Append(r Record) *Feature {
	f := NewFeature(r)
	c.Features = append(c.Features, f)
	return f
}

// Len returns the number of features.
func (c *Collection) Len() int {
	return len(c.Features)
}

// MaxID returns the largest machine id in the collection, or 0 when empty.
// Unassigned ids do not count.
func (c *Collection) MaxID() int {
	maxID := 0
	for _, f := range c.Features {
		if f.Properties.ID > maxID {
			maxID = f.Properties.ID
		}
	}
	return maxID
}

// URLs returns the set of external links present in the collection,
// excluding the no-link literal.
func (c *Collection) URLs() map[string]bool {
	urls := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		if f.Properties.ExternalURL != NoURL && f.Properties.ExternalURL != "" {
			urls[f.Properties.ExternalURL] = true
		}
	}
	return urls
}

// ValidateUniqueIDs fails when any machine id occurs more than once.
// A run that would persist duplicates must fail loudly instead.
func (c *Collection) ValidateUniqueIDs() error {
	counts := make(map[int]int, len(c.Features))
	for _, f := range c.Features {
		counts[f.Properties.ID]++
	}
	dups := make(map[int]int)
	for id, n := range counts {
		if n > 1 {
			dups[id] = n
		}
	}
	if len(dups) > 0 {
		return &errors.DuplicateIDError{Counts: dups}
	}
	return nil
}

// Load reads a feature collection from a JSON file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return c, nil
}

// Decode parses a feature collection from JSON bytes.
func Decode(data []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Type != "FeatureCollection" {
		return nil, &errors.ValidationError{Field: "type", Value: c.Type, Message: "not a FeatureCollection"}
	}
	return &c, nil
}

// Encode renders the collection the way the datasets are stored: 4-space
// indent, UTF-8 kept as-is rather than HTML-escaped, trailing newline.
func (c *Collection) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the collection to a JSON file.
func (c *Collection) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return errors.WrapParse("json", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
