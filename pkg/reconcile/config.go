package reconcile

import "path/filepath"

// Config carries every tunable of a reconciliation run. All knobs are
// explicit constructor input; the engine keeps no package-level state.
type Config struct {
	// DeviceJSON is the path to the bundled on-device dataset.
	DeviceJSON string

	// ServerJSON is the path to the stored server dataset. When FromRemote
	// is set the remote copy is pulled through the publisher and written
	// here for later comparison.
	ServerJSON string

	// ProblemsJSON and SkipJSON are the previous problem set and the
	// operator-maintained skip list. Both are optional locally; with
	// FromRemote they are pulled through the publisher.
	ProblemsJSON string
	SkipJSON     string

	// OutputDir receives the merged dataset and the fresh problem set.
	OutputDir string

	// RunMarker is the exclusive-lease marker file. Empty disables the
	// lease (tests).
	RunMarker string

	// FromRemote pulls the server dataset, problem set and skip list from
	// the hosting repository instead of local files.
	FromRemote bool

	// DryRun runs the full reconciliation but skips the persist step.
	DryRun bool

	// FuzzyThreshold is the 0-100 similarity score a fuzzy name or
	// address match must exceed to merge a candidate into a stored
	// record. Conservative on purpose: a wrong merge is worse than a
	// problem-set entry.
	FuzzyThreshold int

	// ProximityMeters is the distance under which a geocoded candidate
	// and a stored link-less record count as the same physical machine.
	ProximityMeters float64
}

// Default configuration values.
const (
	DefaultFuzzyThreshold  = 92
	DefaultProximityMeters = 100
)

// DefaultConfig returns a Config with production defaults rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DeviceJSON:      filepath.Join(dataDir, "all_locations.json"),
		ServerJSON:      filepath.Join(dataDir, "server_locations.json"),
		ProblemsJSON:    filepath.Join(dataDir, "problems.json"),
		SkipJSON:        filepath.Join(dataDir, "skip.json"),
		OutputDir:       dataDir,
		RunMarker:       filepath.Join(dataDir, "running.tmp"),
		FuzzyThreshold:  DefaultFuzzyThreshold,
		ProximityMeters: DefaultProximityMeters,
	}
}

// withDefaults fills zero values with defaults.
func (c Config) withDefaults() Config {
	if c.FuzzyThreshold == 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.ProximityMeters == 0 {
		c.ProximityMeters = DefaultProximityMeters
	}
	return c
}
