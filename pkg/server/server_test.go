package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"mictrack/internal/runner"
	"mictrack/internal/store"
	"mictrack/pkg/scraper"

	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	result scraper.Result
}

func (f *fakeScraper) Name() scraper.SourceName              { return scraper.SourceBadslava }
func (f *fakeScraper) Scrape(context.Context) scraper.Result { return f.result }

func testServer(t *testing.T, result scraper.Result) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := runner.New(db, []scraper.Scraper{&fakeScraper{result: result}}, nil, nil)
	srv := httptest.NewServer(New(db, r, 0).routes())
	t.Cleanup(srv.Close)
	return srv, db
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, scraper.Result{})

	var body map[string]string
	resp := getJSON(t, srv.URL+"/health", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestMicsEndpoint(t *testing.T) {
	srv, db := testServer(t, scraper.Result{})
	ctx := context.Background()

	require.NoError(t, db.AddMic(ctx, &scraper.Mic{
		Name: "Mon Mic", Venue: "V1", DayOfWeek: "Monday", StartTime: "19:00",
	}))
	require.NoError(t, db.AddMic(ctx, &scraper.Mic{
		Name: "Tue Mic", Venue: "V2", DayOfWeek: "Tuesday", StartTime: "19:00",
	}))

	var body struct {
		Data  []scraper.Mic `json:"data"`
		Count int           `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/mics", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, body.Count)

	resp = getJSON(t, srv.URL+"/api/v1/mics?day=Tuesday", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, body.Count)
	require.Equal(t, "Tue Mic", body.Data[0].Name)
}

func TestScrapeEndpoint(t *testing.T) {
	srv, db := testServer(t, scraper.Result{
		Mics: []scraper.Mic{{
			Name: "Fresh Mic", Venue: "Fresh Venue", DayOfWeek: "Monday",
			StartTime: "20:00", Source: scraper.SourceBadslava,
		}},
		RawCount: 1,
	})

	resp, err := http.Post(srv.URL+"/api/v1/scrape", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data    []runner.SourceReport `json:"data"`
		Applied bool                  `json:"applied"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Applied)
	require.Len(t, body.Data, 1)
	require.Len(t, body.Data[0].New, 1)

	// Dry run: nothing was stored.
	mics, err := db.ListActiveMics(context.Background())
	require.NoError(t, err)
	require.Empty(t, mics)

	// With apply the mic lands in the store.
	resp2, err := http.Post(srv.URL+"/api/v1/scrape?apply=true", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	mics, err = db.ListActiveMics(context.Background())
	require.NoError(t, err)
	require.Len(t, mics, 1)
}

func TestScrapeEndpointToleratesSourceErrors(t *testing.T) {
	srv, _ := testServer(t, scraper.Result{Errors: []string{"fetch failed"}})

	resp, err := http.Post(srv.URL+"/api/v1/scrape", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Extractor failures stay inside the report; the endpoint is fine.
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []runner.SourceReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, []string{"fetch failed"}, body.Data[0].Errors)
}

func TestScrapeEndpointRequiresPost(t *testing.T) {
	srv, _ := testServer(t, scraper.Result{})

	resp, err := http.Get(srv.URL + "/api/v1/scrape")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPlansEndpointValidation(t *testing.T) {
	srv, db := testServer(t, scraper.Result{})
	ctx := context.Background()

	mic := &scraper.Mic{Name: "Plan Mic", Venue: "V", DayOfWeek: "Monday", StartTime: "19:00"}
	require.NoError(t, db.AddMic(ctx, mic))
	require.NoError(t, db.SetPlan(ctx, mic.ID, "2026-09-07", store.PlanGoing))

	resp, err := http.Get(srv.URL + "/api/v1/plans")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Data  []store.PlanWithMic `json:"data"`
		Count int                 `json:"count"`
	}
	ok := getJSON(t, srv.URL+"/api/v1/plans?start=2026-09-01&end=2026-09-30", &body)
	require.Equal(t, http.StatusOK, ok.StatusCode)
	require.Equal(t, 1, body.Count)
	require.Equal(t, "Plan Mic", body.Data[0].MicName)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, db := testServer(t, scraper.Result{})
	require.NoError(t, db.LogScrape(context.Background(), "badslava", "success", "ok"))

	var body struct {
		Data  []store.ScrapeAttempt `json:"data"`
		Count int                   `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/history", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, body.Count)
	require.Equal(t, "badslava", body.Data[0].Source)
}
