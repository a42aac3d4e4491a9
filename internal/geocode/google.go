package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/machinemap/machinemap/pkg/errors"
)

// DefaultEndpoint is the Google Maps Geocoding API endpoint.
const DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// Google is a Geocoder backed by the Google Maps Geocoding web API.
type Google struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewGoogle creates a Google geocoder. An empty endpoint uses the
// production API.
func NewGoogle(apiKey, endpoint string, httpClient *http.Client) *Google {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Google{endpoint: endpoint, apiKey: apiKey, http: httpClient}
}

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode implements Geocoder.
func (g *Google) Geocode(ctx context.Context, query string) (Point, bool, error) {
	params := url.Values{}
	params.Set("address", query)

	resp, err := g.call(ctx, params)
	if err != nil {
		return Point{}, false, err
	}
	if len(resp.Results) == 0 {
		return Point{}, false, nil
	}
	loc := resp.Results[0].Geometry.Location
	return Point{Lat: loc.Lat, Lng: loc.Lng}, true, nil
}

// ReverseGeocode implements Geocoder.
func (g *Google) ReverseGeocode(ctx context.Context, pt Point, resultType string) (string, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", pt.Lat, pt.Lng))
	if resultType != "" {
		params.Set("result_type", resultType)
	}

	resp, err := g.call(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].FormattedAddress, nil
}

func (g *Google) call(ctx context.Context, params url.Values) (*googleResponse, error) {
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.WrapAPI("geocoder", 0, err)
	}
	httpResp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.WrapAPI("geocoder", 0, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &errors.APIError{Service: "geocoder", StatusCode: httpResp.StatusCode, Message: "geocode request failed"}
	}

	var resp googleResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.WrapParse("json", g.endpoint, err)
	}
	switch resp.Status {
	case "OK", "ZERO_RESULTS":
		return &resp, nil
	}
	return nil, &errors.APIError{Service: "geocoder", Message: "status " + resp.Status}
}
