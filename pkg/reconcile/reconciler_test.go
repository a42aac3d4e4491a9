package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemap/machinemap/internal/areas"
	"github.com/machinemap/machinemap/internal/geocode"
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/internal/publish"
	"github.com/machinemap/machinemap/pkg/errors"
	"github.com/machinemap/machinemap/pkg/machines"
)

type fakePublisher struct {
	files   map[string][]byte
	commits []string
}

func (p *fakePublisher) Fetch(_ context.Context, path string) ([]byte, error) {
	data, ok := p.files[path]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return data, nil
}

func (p *fakePublisher) Commit(_ context.Context, path string, content []byte, _, _ string) error {
	if p.files == nil {
		p.files = map[string][]byte{}
	}
	p.files[path] = content
	p.commits = append(p.commits, path)
	return nil
}

func writeCollection(t *testing.T, path string, c *machines.Collection) {
	t.Helper()
	require.NoError(t, c.Save(path))
}

func testConfig(t *testing.T, device, server *machines.Collection) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.RunMarker = "" // no lease in tests unless the test asks
	writeCollection(t, cfg.DeviceJSON, device)
	writeCollection(t, cfg.ServerJSON, server)
	return cfg
}

func newTestReconciler(t *testing.T, cfg Config, l Listing, g geocode.Geocoder, pub *fakePublisher) *Reconciler {
	t.Helper()
	table, err := areas.Embedded()
	require.NoError(t, err)
	if g == nil {
		g = &fakeGeocoder{}
	}
	// A nil *fakePublisher must stay a nil interface.
	var publisher publish.Publisher
	if pub != nil {
		publisher = pub
	}
	r, err := New(cfg, table, l, g, &fakeProber{dead: []string{"dead"}}, publisher, nil)
	require.NoError(t, err)
	return r
}

func availableRow(title, subtitle, city, link string) listing.Row {
	return listing.Row{Title: title, Subtitle: subtitle, City: city, Link: link, Updated: "4/30/24"}
}

func TestRunFullPass(t *testing.T) {
	// One of everything: a machine that vanished from the listing's point
	// of view, a stored link-less machine that gained a link, a brand new
	// machine, and an available row whose link is dead.
	server := collectionOf(
		record(1, "Ferry Terminal", "Maine", "Ocean Gateway Pier, Portland", "http://listing.test/location/1", machines.StatusAvailable, machines.NewDate(2023, 1, 1)),
		record(2, "Old Mill Shop", "Maine", "56 Main Street, Freeport", machines.NoURL, machines.StatusAvailable, machines.NewDate(2023, 1, 1)),
	)
	device := collectionOf()
	cfg := testConfig(t, device, server)

	l := &fakeListing{
		areas: map[string]int{"Maine": 19, " Private Rollers": 98},
		rows: map[int][]listing.Row{
			19: {
				{Title: "Ferry Terminal", Subtitle: "Ocean Gateway Pier", City: "Portland", Status: "Gone", Link: "http://listing.test/location/1", Updated: "4/30/24"},
				// Slightly different listing name so the exact-name
				// duplicate guard does not swallow the fuzzy backfill.
				availableRow("Old Mill Shops", "56 Main Street", "Freeport", "http://listing.test/location/2"),
				availableRow("Harbor Carousel", "12 Pier Road", "Portland", "http://listing.test/location/3"),
				availableRow("Broken Kiosk", "1 Nowhere Lane", "Portland", "http://listing.test/location/dead"),
			},
		},
	}
	g := &fakeGeocoder{points: map[string]geocode.Point{
		"Harbor Carousel, 12 Pier Road, Portland": {Lat: 43.6571, Lng: -70.2468},
	}}
	pub := &fakePublisher{}

	r := newTestReconciler(t, cfg, l, g, pub)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Retired)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 3, result.Changed, "retire, backfill and insert each count")
	assert.Equal(t, 1, result.Areas, "pseudo-area skipped")
	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, 1, result.Problems())
	assert.True(t, result.Persisted)

	// The merged dataset reflects all three mutations.
	merged := result.Merged
	require.Equal(t, 3, merged.Len())
	assert.Equal(t, machines.StatusRetired, merged.Features[0].Properties.Status)
	assert.Equal(t, "http://listing.test/location/2", merged.Features[1].Properties.ExternalURL)
	assert.Equal(t, 3, merged.Features[2].Properties.ID)

	// Both artifacts persisted locally and committed upstream.
	for _, name := range []string{"server_locations.json", "problems.json"} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}
	assert.Equal(t, []string{"data/server_locations.json", "data/problems.json"}, pub.commits)
}

func TestRunIdempotent(t *testing.T) {
	server := collectionOf(
		record(1, "Ferry Terminal", "Maine", "Ocean Gateway Pier, Portland", "http://listing.test/location/1", machines.StatusAvailable, machines.NewDate(2023, 1, 1)),
	)
	cfg := testConfig(t, collectionOf(), server)

	l := &fakeListing{
		areas: map[string]int{"Maine": 19},
		rows: map[int][]listing.Row{
			19: {
				{Title: "Ferry Terminal", Subtitle: "Ocean Gateway Pier", City: "Portland", Status: "Gone", Link: "http://listing.test/location/1", Updated: "4/30/24"},
			},
		},
	}

	r := newTestReconciler(t, cfg, l, nil, nil)
	first, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Retired)

	// Second run reads the first run's output and must change nothing.
	cfg2 := cfg
	cfg2.ServerJSON = filepath.Join(cfg.OutputDir, "server_locations.json")
	r2 := newTestReconciler(t, cfg2, l, nil, nil)
	second, err := r2.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, second.Changed)
	assert.Zero(t, second.New)
	assert.Zero(t, second.Retired)
}

func TestRunDryRunPersistsNothing(t *testing.T) {
	server := collectionOf(
		record(1, "Ferry Terminal", "Maine", "Ocean Gateway Pier, Portland", "http://listing.test/location/1", machines.StatusAvailable, machines.NewDate(2023, 1, 1)),
	)
	cfg := testConfig(t, collectionOf(), server)
	cfg.OutputDir = filepath.Join(cfg.OutputDir, "out")
	cfg.DryRun = true

	l := &fakeListing{
		areas: map[string]int{"Maine": 19},
		rows: map[int][]listing.Row{
			19: {
				{Title: "Ferry Terminal", Subtitle: "Ocean Gateway Pier", City: "Portland", Status: "Gone", Link: "http://listing.test/location/1", Updated: "4/30/24"},
			},
		},
	}
	pub := &fakePublisher{}

	r := newTestReconciler(t, cfg, l, nil, pub)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Retired)
	assert.False(t, result.Persisted)
	assert.Empty(t, pub.commits)
	_, err = os.Stat(filepath.Join(cfg.OutputDir, "server_locations.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSkipListSuppressesRow(t *testing.T) {
	cfg := testConfig(t, collectionOf(), collectionOf())
	writeCollection(t, cfg.SkipJSON, collectionOf(
		record(machines.UnassignedID, "Known Broken", "Maine", "", "http://listing.test/location/13", machines.StatusUnvisited, machines.None),
	))

	l := &fakeListing{
		areas: map[string]int{"Maine": 19},
		rows: map[int][]listing.Row{
			19: {availableRow("Known Broken", "1 Nowhere Lane", "Portland", "http://listing.test/location/13")},
		},
	}

	r := newTestReconciler(t, cfg, l, nil, nil)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Changed)
	assert.Zero(t, result.Problems())
	assert.Zero(t, result.Merged.Len())
}

func TestRunDuplicateIDFatal(t *testing.T) {
	server := collectionOf(
		record(1, "A", "Maine", "a", "http://listing.test/location/1", machines.StatusRetired, machines.NewDate(2023, 1, 1)),
		record(1, "B", "Maine", "b", "http://listing.test/location/2", machines.StatusRetired, machines.NewDate(2023, 1, 1)),
	)
	cfg := testConfig(t, collectionOf(), server)

	l := &fakeListing{areas: map[string]int{"Maine": 19}}
	r := newTestReconciler(t, cfg, l, nil, nil)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateID))
}

func TestRunUnknownAreaFatal(t *testing.T) {
	cfg := testConfig(t, collectionOf(), collectionOf())

	l := &fakeListing{areas: map[string]int{"Atlantis": 250}}
	r := newTestReconciler(t, cfg, l, nil, nil)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownArea))
}

func TestRunLeaseBlocksConcurrentRun(t *testing.T) {
	cfg := testConfig(t, collectionOf(), collectionOf())
	cfg.RunMarker = filepath.Join(t.TempDir(), "running.tmp")
	require.NoError(t, os.WriteFile(cfg.RunMarker, nil, 0o644))

	l := &fakeListing{areas: map[string]int{"Maine": 19}}
	r := newTestReconciler(t, cfg, l, nil, nil)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRunInProgress))
}

func TestRunCrossCheckFlagsDeadStoredLink(t *testing.T) {
	// A stored available machine whose link the listing no longer serves:
	// the cross check files a problem but never touches the status.
	server := collectionOf(
		record(1, "Ferry Terminal", "Maine", "Ocean Gateway Pier, Portland", "http://listing.test/location/dead", machines.StatusAvailable, machines.NewDate(2023, 1, 1)),
	)
	cfg := testConfig(t, collectionOf(), server)

	l := &fakeListing{areas: map[string]int{"Maine": 19}}
	r := newTestReconciler(t, cfg, l, nil, nil)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Problems())
	assert.Equal(t, machines.StatusAvailable, result.Merged.Features[0].Properties.Status)
	assert.Zero(t, result.Changed)
}

func TestRunFromRemote(t *testing.T) {
	server := collectionOf(
		record(1, "Ferry Terminal", "Maine", "Ocean Gateway Pier, Portland", "http://listing.test/location/1", machines.StatusAvailable, machines.NewDate(2023, 1, 1)),
	)
	serverJSON, err := server.Encode()
	require.NoError(t, err)
	problemsJSON, err := machines.NewCollection().Encode()
	require.NoError(t, err)

	cfg := testConfig(t, collectionOf(), collectionOf())
	cfg.FromRemote = true
	pub := &fakePublisher{files: map[string][]byte{
		"data/server_locations.json": serverJSON,
		"data/problems.json":         problemsJSON,
		"data/skip.json":             problemsJSON,
	}}

	l := &fakeListing{
		areas: map[string]int{"Maine": 19},
		rows: map[int][]listing.Row{
			19: {
				{Title: "Ferry Terminal", Subtitle: "Ocean Gateway Pier", City: "Portland", Status: "Gone", Link: "http://listing.test/location/1", Updated: "4/30/24"},
			},
		},
	}

	r := newTestReconciler(t, cfg, l, nil, pub)
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Retired)
	assert.Contains(t, pub.commits, "data/server_locations.json")

	// The pulled server dataset was mirrored locally.
	local, err := machines.Load(cfg.ServerJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, local.Len())
}

func TestNewRequiresCollaborators(t *testing.T) {
	table, err := areas.Embedded()
	require.NoError(t, err)

	_, err = New(Config{}, table, nil, &fakeGeocoder{}, &fakeProber{}, nil, nil)
	assert.Error(t, err)
}
