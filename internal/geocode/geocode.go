// Package geocode is the boundary to the geocoding collaborator. The
// engine only ever asks two questions: where is this free-text query, and
// what is the formatted address at this point. A query with no result is an
// expected outcome, not an error.
package geocode

import (
	"context"

	"github.com/machinemap/machinemap/pkg/machines"
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Coordinates converts the point into the record model's lon/lat pair.
func (p Point) Coordinates() machines.Coordinates {
	return machines.NewCoordinates(p.Lng, p.Lat)
}

// Geocoder resolves free-text queries to coordinates and back.
type Geocoder interface {
	// Geocode resolves a query. ok is false when the service had no
	// result; err is reserved for transport or API failures.
	Geocode(ctx context.Context, query string) (pt Point, ok bool, err error)

	// ReverseGeocode formats the address at a point, filtered to a result
	// type (e.g. "street_address"). Empty string when nothing matches.
	ReverseGeocode(ctx context.Context, pt Point, resultType string) (string, error)
}

// Locate geocodes a machine by name and address, falling back through
// progressively looser queries: name + address, address alone, name alone.
// Machine names are often venue names the geocoder chokes on, while the
// address alone usually resolves.
//
// On exhaustion it returns ok=false; transport errors are also reported as
// a failed location so a flaky geocoder degrades to a problem-set entry
// rather than aborting the run.
func Locate(ctx context.Context, g Geocoder, name, address string) (Point, bool) {
	queries := []string{name + ", " + address, address, name}
	for _, q := range queries {
		pt, ok, err := g.Geocode(ctx, q)
		if err != nil {
			continue
		}
		if ok {
			return pt, true
		}
	}
	return Point{}, false
}
