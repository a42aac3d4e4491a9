package machinemap

import (
	"net/http"

	"github.com/machinemap/machinemap/internal/areas"
	"github.com/machinemap/machinemap/internal/geocode"
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/internal/notify"
	"github.com/machinemap/machinemap/internal/probe"
	"github.com/machinemap/machinemap/internal/publish"
	"github.com/machinemap/machinemap/pkg/reconcile"
)

// Option is a function that configures a Machinemap instance.
type Option func(*config) error

type config struct {
	reconcile reconcile.Config

	listingURL   string
	areasFile    string
	googleAPIKey string
	slackToken   string
	slackChannel string
	github       publish.Options

	httpClient *http.Client

	// Injected collaborators override the built ones. Tests mostly.
	table     *areas.Table
	listing   reconcile.Listing
	geocoder  geocode.Geocoder
	prober    probe.Prober
	publisher publish.Publisher
	notifier  notify.Notifier
}

func defaultConfig() *config {
	return &config{
		reconcile:  reconcile.DefaultConfig("data"),
		listingURL: listing.DefaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
}

// WithDataDir roots all dataset paths at dir.
func WithDataDir(dir string) Option {
	return func(c *config) error {
		c.reconcile = reconcile.DefaultConfig(dir)
		return nil
	}
}

// WithReconcileConfig replaces the engine configuration wholesale.
func WithReconcileConfig(cfg reconcile.Config) Option {
	return func(c *config) error {
		c.reconcile = cfg
		return nil
	}
}

// WithDryRun runs the full reconciliation but persists nothing.
func WithDryRun(enabled bool) Option {
	return func(c *config) error {
		c.reconcile.DryRun = enabled
		return nil
	}
}

// WithFromRemote pulls the server dataset, problem set and skip list from
// the hosting repository instead of local files.
func WithFromRemote(enabled bool) Option {
	return func(c *config) error {
		c.reconcile.FromRemote = enabled
		return nil
	}
}

// WithListingURL configures the directory website base URL.
func WithListingURL(url string) Option {
	return func(c *config) error {
		c.listingURL = url
		return nil
	}
}

// WithAreasFile overrides the embedded area table with a YAML file.
func WithAreasFile(path string) Option {
	return func(c *config) error {
		c.areasFile = path
		return nil
	}
}

// WithGoogleAPIKey configures the Google Maps geocoding key.
func WithGoogleAPIKey(key string) Option {
	return func(c *config) error {
		c.googleAPIKey = key
		return nil
	}
}

// WithGitHub configures the repository the run publishes to.
func WithGitHub(opts publish.Options) Option {
	return func(c *config) error {
		c.github = opts
		return nil
	}
}

// WithSlack configures run notifications.
func WithSlack(token, channel string) Option {
	return func(c *config) error {
		c.slackToken = token
		c.slackChannel = channel
		return nil
	}
}

// WithHTTPClient sets the HTTP client shared by the scraper, prober and
// geocoder.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) error {
		c.httpClient = client
		return nil
	}
}

// WithAreaTable injects a prebuilt area table.
func WithAreaTable(t *areas.Table) Option {
	return func(c *config) error {
		c.table = t
		return nil
	}
}

// WithListing injects a listing client.
func WithListing(l reconcile.Listing) Option {
	return func(c *config) error {
		c.listing = l
		return nil
	}
}

// WithGeocoder injects a geocoder.
func WithGeocoder(g geocode.Geocoder) Option {
	return func(c *config) error {
		c.geocoder = g
		return nil
	}
}

// WithProber injects a link prober.
func WithProber(p probe.Prober) Option {
	return func(c *config) error {
		c.prober = p
		return nil
	}
}

// WithPublisher injects a publisher.
func WithPublisher(p publish.Publisher) Option {
	return func(c *config) error {
		c.publisher = p
		return nil
	}
}

// WithNotifier injects a notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(c *config) error {
		c.notifier = n
		return nil
	}
}
