package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemap/machinemap/pkg/machines"
)

func TestBuildIndexLookupServerFirst(t *testing.T) {
	url := "http://listing.test/location/1"
	server := collectionOf(
		record(1, "Zoo Entrance", "Switzerland", "Zürichbergstrasse 221, Zurich", url, machines.StatusAvailable, machines.NewDate(2023, 4, 1)),
	)
	device := collectionOf(
		record(1, "Zoo Entrance", "Switzerland", "Zürichbergstrasse 221, Zurich", url, machines.StatusAvailable, machines.NewDate(2023, 4, 1)),
	)

	idx := BuildIndex(server, device, hostsListing)

	matches, source, ok := idx.Lookup(url)
	require.True(t, ok)
	assert.Equal(t, machines.SourceServer, source)
	require.Len(t, matches, 1)
	assert.Same(t, server.Features[0], matches[0])

	_, _, ok = idx.Lookup("http://listing.test/location/404")
	assert.False(t, ok)
}

func TestBuildIndexDeviceOnlyURL(t *testing.T) {
	url := "http://listing.test/location/7"
	server := collectionOf()
	device := collectionOf(
		record(7, "Pier 39", "California", "Beach Street, San Francisco", url, machines.StatusUnvisited, machines.NewDate(2022, 1, 1)),
	)

	idx := BuildIndex(server, device, hostsListing)

	_, source, ok := idx.Lookup(url)
	require.True(t, ok)
	assert.Equal(t, machines.SourceDevice, source)
}

func TestBuildIndexLinklessTable(t *testing.T) {
	server := collectionOf(
		// No link at all.
		record(2, "Harbor Kiosk", "Maine", "Commercial St, Portland", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 6, 2)),
		// Foreign link counts as link-less: the link is no identity there.
		record(3, "Museum Shop", "Maine", "Congress St, Portland", "http://elsewhere.example/3", machines.StatusAvailable, machines.NewDate(2021, 6, 2)),
	)
	device := collectionOf(
		// Same id as the server copy; the server copy must win.
		record(2, "Harbor Kiosk", "Maine", "Commercial St, Portland", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 6, 2)),
		// Device-only link-less machine.
		record(9, "Lighthouse Stand", "Maine", "Cape Elizabeth", machines.NoURL, machines.StatusUnvisited, machines.NewDate(2021, 8, 1)),
	)

	idx := BuildIndex(server, device, hostsListing)

	entries := idx.LinklessInArea("Maine")
	require.Len(t, entries, 3)
	assert.Equal(t, machines.SourceServer, entries[0].Source)
	assert.Equal(t, "Harbor Kiosk", entries[0].Name)
	assert.Equal(t, "Museum Shop", entries[1].Name)
	assert.Equal(t, machines.SourceDevice, entries[2].Source)
	assert.Equal(t, "Lighthouse Stand", entries[2].Name)

	assert.Empty(t, idx.LinklessInArea("Vermont"))
}

func TestIndexUnlink(t *testing.T) {
	server := collectionOf(
		record(2, "Harbor Kiosk", "Maine", "Commercial St, Portland", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 6, 2)),
		record(3, "Museum Shop", "Maine", "Congress St, Portland", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 6, 2)),
	)
	idx := BuildIndex(server, collectionOf(), hostsListing)

	entries := idx.LinklessInArea("Maine")
	require.Len(t, entries, 2)
	idx.Unlink(entries[0])

	remaining := idx.LinklessInArea("Maine")
	require.Len(t, remaining, 1)
	assert.Equal(t, "Museum Shop", remaining[0].Name)
}

func TestIndexNextID(t *testing.T) {
	server := collectionOf(
		record(5, "A", "Texas", "a", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 1, 1)),
	)
	device := collectionOf(
		record(11, "B", "Texas", "b", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 1, 1)),
	)
	idx := BuildIndex(server, device, hostsListing)

	assert.Equal(t, 12, idx.NextID())
	assert.Equal(t, 13, idx.NextID())
}

func TestIndexNameRegistry(t *testing.T) {
	server := collectionOf(
		record(5, "Aquarium", "Texas", "a", machines.NoURL, machines.StatusAvailable, machines.NewDate(2021, 1, 1)),
	)
	idx := BuildIndex(server, collectionOf(), hostsListing)

	assert.True(t, idx.HasName("Texas", "Aquarium"))
	assert.False(t, idx.HasName("Texas", "Zoo"))

	idx.RegisterName("Texas", "Zoo")
	assert.True(t, idx.HasName("Texas", "Zoo"))
}
