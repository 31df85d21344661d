// Package geocode resolves street addresses to coordinates using
// OpenStreetMap's Nominatim service.
package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client is a rate-limited Nominatim client. Nominatim's usage policy
// allows one request per second, enforced here so callers can loop
// freely.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// New creates a geocoding client. baseURL is the Nominatim endpoint
// ("" for the public instance); userAgent identifies this application
// as the policy requires.
func New(baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if userAgent == "" {
		userAgent = "mictrack/1.0"
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("User-Agent", userAgent).
			SetTimeout(10 * time.Second),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type result struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves a street address to (lat, lng). The borough is
// appended along with "New York, NY" to disambiguate NYC street names.
func (c *Client) Geocode(ctx context.Context, address, borough string) (float64, float64, error) {
	if address == "" {
		return 0, 0, fmt.Errorf("geocode: empty address")
	}
	if borough == "" {
		borough = "New York"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", address, err)
	}

	var results []result
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      fmt.Sprintf("%s, %s, New York, NY", address, borough),
			"format": "json",
			"limit":  "1",
		}).
		SetResult(&results).
		Get("/search")
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", address, err)
	}
	if resp.IsError() {
		return 0, 0, fmt.Errorf("geocode %q: status %d", address, resp.StatusCode())
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("geocode %q: no results", address)
	}

	var lat, lng float64
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &lat); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: bad latitude %q", address, results[0].Lat)
	}
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &lng); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: bad longitude %q", address, results[0].Lon)
	}
	return lat, lng, nil
}
