// Package probe checks whether external machine links are alive. Network
// failures are results, not errors: a dead link routes a row to the problem
// set, it never crashes a run.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Result is the outcome of probing one URL.
type Result struct {
	OK         bool
	StatusCode int
	Reason     string // human-readable failure explanation
}

// Prober checks link liveness.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// HTTP is a Prober using plain GET requests.
type HTTP struct {
	http *http.Client
}

// NewHTTP creates an HTTP prober.
func NewHTTP(httpClient *http.Client) *HTTP {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTP{http: httpClient}
}

// Probe implements Prober.
func (p *HTTP) Probe(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Reason: err.Error()}
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return Result{Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Result{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("%s (%d)", http.StatusText(resp.StatusCode), resp.StatusCode),
		}
	}
	return Result{OK: true, StatusCode: resp.StatusCode}
}
