package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SourceName identifies which site a mic record came from.
type SourceName string

const (
	SourceBadslava       SourceName = "badslava"
	SourceEastville      SourceName = "eastville"
	SourceFiremics       SourceName = "firemics"
	SourceComedyListings SourceName = "comedy_listings"
)

// Mic is the standardized record every scraper produces and the row
// shape of the mics table. start_time is 24-hour "HH:MM", zero-padded,
// so string sort order matches time-of-day order.
type Mic struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Venue        string     `json:"venue" db:"venue"`
	Address      string     `json:"address" db:"address"`
	Neighborhood string     `json:"neighborhood" db:"neighborhood"`
	Borough      string     `json:"borough" db:"borough"`
	DayOfWeek    string     `json:"day_of_week" db:"day_of_week"`
	StartTime    string     `json:"start_time" db:"start_time"`
	DisplayTime  string     `json:"display_time" db:"display_time"`
	EndTime      string     `json:"end_time" db:"end_time"`
	Cost         string     `json:"cost" db:"cost"`
	SetLengthMin int        `json:"set_length_min" db:"set_length_min"`
	SignupMethod string     `json:"signup_method" db:"signup_method"`
	SignupURL    string     `json:"signup_url" db:"signup_url"`
	SignupNotes  string     `json:"signup_notes" db:"signup_notes"`
	VenueURL     string     `json:"venue_url" db:"venue_url"`
	Instagram    string     `json:"instagram" db:"instagram"`
	MicRating    float64    `json:"mic_rating" db:"mic_rating"`
	Notes        string     `json:"notes" db:"notes"`
	Latitude     *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64   `json:"longitude,omitempty" db:"longitude"`
	IsBiweekly   bool       `json:"is_biweekly" db:"is_biweekly"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	Source       SourceName `json:"source,omitempty" db:"-"`
}

// Result is what every scraper returns. RawCount is the number of raw
// entries seen before geographic and category filtering, so callers can
// report "found N total, M relevant". Scrapers never fail with a Go
// error: every failure mode ends up as a string in Errors alongside a
// best-effort (possibly empty) Mics slice.
type Result struct {
	Mics     []Mic
	RawCount int
	Errors   []string
}

// Scraper is the interface every site scraper implements.
type Scraper interface {
	Name() SourceName
	Scrape(ctx context.Context) Result
}

// AllSourceNames returns all known scraper sources.
func AllSourceNames() []SourceName {
	return []SourceName{
		SourceBadslava,
		SourceEastville,
		SourceFiremics,
		SourceComedyListings,
	}
}

const fetchTimeout = 15 * time.Second

func newClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

// browserHeaders makes requests look like an ordinary Chrome visit.
// Some of the target sites serve scrapers a 404 while serving browsers
// the real page.
func browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) "+
			"AppleWebKit/537.36 (KHTML, like Gecko) "+
			"Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// fetchPage issues one GET with browser-like headers and returns the
// body. Non-2xx statuses are errors: a failed fetch is fatal for the
// run, never a partial result.
func fetchPage(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request %s: %w", url, err)
	}
	browserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}
