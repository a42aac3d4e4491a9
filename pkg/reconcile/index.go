package reconcile

import (
	"github.com/machinemap/machinemap/pkg/machines"
)

// Linkless is one entry of the link-less table: a stored record identified
// only by free text and geography. Feature is the back-reference into the
// original collection so a match can mutate the record in place.
type Linkless struct {
	Area    string
	Name    string
	Address string
	Source  machines.Source
	Feature *machines.Feature
}

// Index holds the lookup structures over the two stored datasets for one
// run: per-dataset URL maps, the combined link-less table, the name
// registry used by the duplicate guard, and the next free machine id.
type Index struct {
	server map[string][]*machines.Feature
	device map[string][]*machines.Feature

	linkless map[string][]*Linkless     // keyed by area
	names    map[string]map[string]bool // area -> machine names

	nextID int
}

// BuildIndex constructs the identity index from the two stored datasets.
// hosts reports whether a URL points at the listing site; records with
// foreign links count as link-less because the link is no identity there.
//
// When a link-less record exists in both datasets under the same id, only
// the server-sourced copy is kept: server data is the higher-trust source.
func BuildIndex(server, device *machines.Collection, hosts func(string) bool) *Index {
	idx := &Index{
		server:   map[string][]*machines.Feature{},
		device:   map[string][]*machines.Feature{},
		linkless: map[string][]*Linkless{},
		names:    map[string]map[string]bool{},
	}

	seen := map[int]bool{}
	maxID := 0

	index := func(c *machines.Collection, source machines.Source, byURL map[string][]*machines.Feature) {
		for _, f := range c.Features {
			rec := f.Properties
			idx.RegisterName(rec.Area, rec.Name)
			if rec.ID > maxID {
				maxID = rec.ID
			}

			if rec.Linked() && hosts(rec.ExternalURL) {
				byURL[rec.ExternalURL] = append(byURL[rec.ExternalURL], f)
				continue
			}
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			f.Properties.Source = source
			idx.linkless[rec.Area] = append(idx.linkless[rec.Area], &Linkless{
				Area:    rec.Area,
				Name:    rec.Name,
				Address: rec.Address,
				Source:  source,
				Feature: f,
			})
		}
	}

	// Server first so its link-less copies win the per-id dedupe.
	index(server, machines.SourceServer, idx.server)
	index(device, machines.SourceDevice, idx.device)

	idx.nextID = maxID + 1
	return idx
}

// Lookup finds stored records for a URL, server dataset first.
func (idx *Index) Lookup(url string) ([]*machines.Feature, machines.Source, bool) {
	if fs, ok := idx.server[url]; ok {
		return fs, machines.SourceServer, true
	}
	if fs, ok := idx.device[url]; ok {
		return fs, machines.SourceDevice, true
	}
	return nil, "", false
}

// LinklessInArea returns the link-less table scoped to one area.
func (idx *Index) LinklessInArea(area string) []*Linkless {
	return idx.linkless[area]
}

// Unlink removes an entry from the link-less table once a match backfilled
// its external link; it must not match again within the run.
func (idx *Index) Unlink(entry *Linkless) {
	list := idx.linkless[entry.Area]
	for i, e := range list {
		if e == entry {
			idx.linkless[entry.Area] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// HasName reports whether a machine of that name is already known in the
// area, from either stored dataset or from an insert earlier in this run.
func (idx *Index) HasName(area, name string) bool {
	return idx.names[area][name]
}

// RegisterName records a machine name for the duplicate guard.
func (idx *Index) RegisterName(area, name string) {
	if idx.names[area] == nil {
		idx.names[area] = map[string]bool{}
	}
	idx.names[area][name] = true
}

// NextID returns the next free machine id and advances the counter.
// Ids are monotonic across the whole merged universe and never reused.
func (idx *Index) NextID() int {
	id := idx.nextID
	idx.nextID++
	return id
}
