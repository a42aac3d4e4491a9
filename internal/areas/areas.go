// Package areas holds the table of areas (regions and countries) the engine
// understands, keyed to the numeric area codes of the directory website.
// The table is the configuration the run validates the published area list
// against: an area the table does not know is a hard stop.
package areas

import (
	_ "embed"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/machinemap/machinemap/pkg/errors"
)

//go:embed areas.yaml
var embedded []byte

// Area is one entry of the area table.
type Area struct {
	Name string `yaml:"name"`
	Code int    `yaml:"code"`

	// Skip marks pseudo-areas on the directory that do not map to a
	// geography and must not be reconciled.
	Skip bool `yaml:"skip,omitempty"`
}

// Table maps area names to their directory codes.
type Table struct {
	list  []Area
	index map[string]Area
}

type tableFile struct {
	Areas []Area `yaml:"areas"`
}

// Embedded returns the table bundled with the binary.
func Embedded() (*Table, error) {
	return parse(embedded, "areas.yaml (embedded)")
}

// LoadFile reads an area table from a YAML file, for overriding the
// bundled table without rebuilding.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, origin string) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapParse("yaml", origin, err)
	}
	if len(f.Areas) == 0 {
		return nil, &errors.ValidationError{Field: "areas", Message: "area table is empty"}
	}
	t := &Table{list: f.Areas, index: make(map[string]Area, len(f.Areas))}
	for _, a := range f.Areas {
		t.index[a.Name] = a
	}
	return t, nil
}

// Code returns the directory code for an area name.
func (t *Table) Code(name string) (int, bool) {
	a, ok := t.index[name]
	return a.Code, ok
}

// Skip reports whether the area is a pseudo-area to leave alone.
func (t *Table) Skip(name string) bool {
	return t.index[name].Skip
}

// Len returns the number of known areas.
func (t *Table) Len() int {
	return len(t.list)
}

// Validate checks a published list of area names against the table and
// returns an error naming every unknown area. The diff is the thing the
// operator needs: new areas mean the table wants updating before any data
// is touched.
func (t *Table) Validate(published []string) error {
	var unknown []string
	for _, name := range published {
		if _, ok := t.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return &errors.AreaError{Unknown: unknown}
	}
	return nil
}
