package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const firemicsFixture = `<html><body>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"dehydratedState":{"queries":[
 {"state":{"data":[
  {"event":{"id":1,"name":"Comedy Corner Mic","types":["comedy"],
    "location":{"name":"The Corner Bar","address":{"raw":"100 Bedford Ave, Brooklyn, NY 11211, USA"}},
    "cost":{"option":"paid","value":5.85},
    "signup_type":{"option":"online","value":"https://signup.example.com"},
    "frequency":{"option":"weekly","instances":[{"weekday":"thursday","start_time":"19:30:00"}]}},
   "start_time":"2026-09-03T19:30:00-04:00"},
  {"event":{"id":1,"name":"Comedy Corner Mic","types":["comedy"],
    "location":{"name":"The Corner Bar","address":{"raw":"100 Bedford Ave, Brooklyn, NY 11211, USA"}},
    "cost":{"option":"paid","value":5.85},
    "signup_type":{"option":"online","value":"https://signup.example.com"},
    "frequency":{"option":"weekly","instances":[{"weekday":"thursday","start_time":"19:30:00"}]}},
   "start_time":"2026-09-10T19:30:00-04:00"},
  {"event":{"id":2,"name":"Twice Weekly Mic","types":["comedy"],
    "location":{"name":"Double Down","address":{"raw":"42 Spring St, New York, NY 10012, USA"}},
    "cost":{"option":"free","value":null},
    "signup_type":{"option":"in_person","value":""},
    "frequency":{"option":"weekly","instances":[{"weekday":["monday","wednesday"],"start_time":"20:00:00"}]}},
   "start_time":"2026-09-07T20:00:00-04:00"},
  {"event":{"id":3,"name":"Music Jam","types":["music"],
    "location":{"name":"Strings","address":{"raw":"1 Broadway, New York, NY, USA"}},
    "cost":{"option":"free","value":null},
    "signup_type":{"option":"in_person","value":""},
    "frequency":{"option":"weekly","instances":[]}},
   "start_time":"2026-09-08T21:00:00-04:00"},
  {"event":{"id":4,"name":"Broken Cost Mic","types":["comedy"],
    "location":{"name":"Oddity","address":{"raw":"9 Allen St, New York, NY, USA"}},
    "cost":{"option":"paid","value":{"amount":5}},
    "signup_type":{"option":"in_person","value":""},
    "frequency":{"option":"weekly","instances":[{"weekday":"friday","start_time":"18:00:00"}]}},
   "start_time":"2026-09-04T18:00:00-04:00"}
 ]}},
 {"state":{"data":[]}}
]}}}}
</script>
</body></html>`

func firemicsForTest(t *testing.T, body string) *Firemics {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return &Firemics{client: srv.Client(), url: srv.URL}
}

func TestFiremicsScrape(t *testing.T) {
	f := firemicsForTest(t, firemicsFixture)

	res := f.Scrape(context.Background())

	// The broken cost value is one non-fatal error.
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "Broken Cost Mic")
	require.Equal(t, 5, res.RawCount)

	// Event 1 appears twice but is deduplicated; event 2 runs two
	// weekdays and becomes two records; the music event is dropped.
	require.Len(t, res.Mics, 3)

	corner := res.Mics[0]
	require.Equal(t, "Comedy Corner Mic", corner.Name)
	require.Equal(t, "The Corner Bar", corner.Venue)
	require.Equal(t, "100 Bedford Ave", corner.Address)
	require.Equal(t, "Williamsburg", corner.Neighborhood)
	require.Equal(t, "Brooklyn", corner.Borough)
	require.Equal(t, "Thursday", corner.DayOfWeek)
	require.Equal(t, "19:30", corner.StartTime)
	require.Equal(t, "7:30 PM", corner.DisplayTime)
	require.Equal(t, "$6", corner.Cost) // 5.85 rounds to a whole dollar
	require.Equal(t, "online", corner.SignupMethod)
	require.Equal(t, "https://signup.example.com", corner.SignupURL)
	require.Equal(t, SourceFiremics, corner.Source)

	require.Equal(t, "Monday", res.Mics[1].DayOfWeek)
	require.Equal(t, "Wednesday", res.Mics[2].DayOfWeek)
	require.Equal(t, "Twice Weekly Mic", res.Mics[1].Name)
	require.Equal(t, "Free", res.Mics[1].Cost)
	require.Equal(t, "20:00", res.Mics[2].StartTime)
}

func TestFiremicsScrapeMissingDehydratedState(t *testing.T) {
	f := firemicsForTest(t, `<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{}}}
</script>`)

	res := f.Scrape(context.Background())
	require.Empty(t, res.Mics)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "dehydrated state")
}

func TestFiremicsScrapeMissingNextData(t *testing.T) {
	f := firemicsForTest(t, "<html><body>plain page</body></html>")

	res := f.Scrape(context.Background())
	require.Empty(t, res.Mics)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "__NEXT_DATA__")
}

func TestFiremicsFallbackToInstanceStart(t *testing.T) {
	// No frequency instances: the concrete start timestamp decides the
	// weekday.
	f := firemicsForTest(t, `<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"dehydratedState":{"queries":[{"state":{"data":[
 {"event":{"id":7,"name":"One Off Mic","types":["comedy"],
   "location":{"name":"Spot","address":{"raw":"8 Orchard St, New York, NY, USA"}},
   "cost":{"option":"free","value":null},
   "signup_type":{"option":"in_person","value":""},
   "frequency":{"option":"weekly","instances":[]}},
  "start_time":"2026-09-06T17:00:00-04:00"}
]}}]}}}}
</script>`)

	res := f.Scrape(context.Background())
	require.Empty(t, res.Errors)
	require.Len(t, res.Mics, 1)
	require.Equal(t, "Sunday", res.Mics[0].DayOfWeek)
	require.Equal(t, "17:00", res.Mics[0].StartTime)
}

func TestParseFiremicsCost(t *testing.T) {
	testCases := []struct {
		name     string
		event    fmEvent
		expected string
	}{
		{"free option", costEvent("free", ""), "Free"},
		{"custom text", costEvent("custom", "1 drink"), "1 drink"},
		{"custom empty", costEvent("custom", ""), "Varies"},
		{"null value", costEvent("paid", ""), ""},
	}

	for _, tc := range testCases {
		got, err := parseFiremicsCost(tc.event)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.expected, got, tc.name)
	}
}

func costEvent(option, custom string) fmEvent {
	var e fmEvent
	e.Cost.Option = option
	e.Cost.ValueCustom = custom
	return e
}
