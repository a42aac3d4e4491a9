package reconcile

import (
	"context"
	"strings"

	"github.com/machinemap/machinemap/internal/geocode"
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/internal/probe"
	"github.com/machinemap/machinemap/pkg/machines"
)

// Shared fakes and fixture helpers for the engine tests.

// fakeGeocoder answers from a fixed query table. Unknown queries are
// misses, which exercises the fallback chain in Locate.
type fakeGeocoder struct {
	points map[string]geocode.Point
	calls  []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, query string) (geocode.Point, bool, error) {
	g.calls = append(g.calls, query)
	pt, ok := g.points[query]
	return pt, ok, nil
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, _ geocode.Point, _ string) (string, error) {
	return "", nil
}

// fakeProber fails any URL containing one of the dead markers.
type fakeProber struct {
	dead   []string
	probed []string
}

func (p *fakeProber) Probe(_ context.Context, url string) probe.Result {
	p.probed = append(p.probed, url)
	for _, d := range p.dead {
		if strings.Contains(url, d) {
			return probe.Result{StatusCode: 404, Reason: "Not Found (404)"}
		}
	}
	return probe.Result{OK: true, StatusCode: 200}
}

// fakeListing serves rows from memory.
type fakeListing struct {
	areas map[string]int
	rows  map[int][]listing.Row
}

func (l *fakeListing) Areas(context.Context) ([]string, error) {
	names := make([]string, 0, len(l.areas))
	for name := range l.areas {
		names = append(names, name)
	}
	return names, nil
}

func (l *fakeListing) Rows(_ context.Context, areaCode int) ([]listing.Row, error) {
	return l.rows[areaCode], nil
}

func (l *fakeListing) Hosts(url string) bool {
	return strings.HasPrefix(url, "http://listing.test/")
}

func hostsListing(url string) bool {
	return strings.HasPrefix(url, "http://listing.test/")
}

func record(id int, name, area, address, url string, status machines.Status, updated machines.Date) machines.Record {
	return machines.Record{
		ID:          id,
		Name:        name,
		Area:        area,
		Address:     address,
		ExternalURL: url,
		Status:      status,
		LastUpdated: updated,
	}
}

func collectionOf(recs ...machines.Record) *machines.Collection {
	c := machines.NewCollection()
	for _, r := range recs {
		c.Append(r)
	}
	return c
}

func candidate(name, area, address, url string, state machines.ScrapedState, web machines.Date) listing.Candidate {
	return listing.Candidate{
		Record: machines.Record{
			ID:          machines.UnassignedID,
			Name:        name,
			Area:        area,
			Address:     address,
			ExternalURL: url,
			Status:      machines.StatusUnvisited,
			LastUpdated: machines.Today(),
		},
		State:          state,
		WebsiteUpdated: web,
	}
}
