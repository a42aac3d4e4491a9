// Package machines defines the canonical machine record model shared by the
// reconciliation engine and its collaborators, together with the GeoJSON
// persistence format used for the device, server and problem datasets.
package machines

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NoURL is the literal stored for records that have no external link.
// It is distinct from an empty string: "null" is an asserted absence,
// "" would be missing data.
const NoURL = "null"

// UnassignedID marks records that have not been assigned an identity yet:
// problem-set entries and freshly scraped candidates.
const UnassignedID = -1

// Source tags which stored dataset a record came from. It only exists
// during a reconciliation run and is never persisted.
type Source string

// The two stored datasets being reconciled.
const (
	SourceDevice Source = "Device"
	SourceServer Source = "Server"
)

// Coordinates is a longitude/latitude pair. Unresolved coordinates (no
// geocoding result yet) serialize as the "N.A." placeholder pair.
type Coordinates struct {
	Lon float64
	Lat float64
	Set bool
}

// NewCoordinates returns resolved coordinates.
func NewCoordinates(lon, lat float64) Coordinates {
	return Coordinates{Lon: lon, Lat: lat, Set: true}
}

// NullIsland reports whether the coordinates are the (0, 0) geocoding
// failure sentinel.
func (c Coordinates) NullIsland() bool {
	return c.Set && c.Lon == 0 && c.Lat == 0
}

// MarshalJSON writes [lon, lat], or the placeholder pair when unresolved.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	if !c.Set {
		return []byte(`["N.A.","N.A."]`), nil
	}
	return json.Marshal([2]float64{c.Lon, c.Lat})
}

// UnmarshalJSON accepts numeric pairs as well as the historical string
// forms: the "N.A." placeholder and stringified floats.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var raw [2]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("coordinates must be a two-element array: %w", err)
	}
	vals := make([]float64, 2)
	for i, v := range raw {
		switch t := v.(type) {
		case float64:
			vals[i] = t
		case string:
			if t == "N.A." {
				*c = Coordinates{}
				return nil
			}
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return fmt.Errorf("invalid coordinate %q: %w", t, err)
			}
			vals[i] = f
		default:
			return fmt.Errorf("invalid coordinate element %v", v)
		}
	}
	*c = NewCoordinates(vals[0], vals[1])
	return nil
}

// Record is one physical machine.
type Record struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Area        string      `json:"area"`
	Address     string      `json:"address"`
	ExternalURL string      `json:"external_url"`
	Status      Status      `json:"status"`
	LastUpdated Date        `json:"last_updated"`
	Coordinates Coordinates `json:"-"`

	// Source tags the originating dataset during a run. Never persisted.
	Source Source `json:"-"`
}

// Linked reports whether the record carries an external link.
func (r *Record) Linked() bool {
	return r.ExternalURL != NoURL && r.ExternalURL != ""
}

// Trim strips leading and trailing whitespace from the free-text fields.
// Applied when a device record is promoted into the server dataset.
func (r *Record) Trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
}
