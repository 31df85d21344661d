package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const firemicsURL = "https://www.firemics.com/new-york-open-mics"

// Firemics scrapes firemics.com's New York page. The site is built on
// Next.js, which serializes the whole page state into a single
// <script id="__NEXT_DATA__"> JSON blob. The event list lives behind a
// fixed key path (props -> pageProps -> dehydratedState -> queries);
// if any key along the path is missing the site's internal structure
// has changed and the run fails with a distinct error.
//
// Firemics lists individual event instances (one per future date), so
// instances are deduplicated by event id. A mic that runs on several
// weekdays produces one record per weekday.
type Firemics struct {
	client *http.Client
	url    string
}

// NewFiremics creates a new firemics scraper.
func NewFiremics() *Firemics {
	return &Firemics{client: newClient(), url: firemicsURL}
}

func (f *Firemics) Name() SourceName { return SourceFiremics }

type fmNextData struct {
	Props struct {
		PageProps struct {
			DehydratedState *struct {
				Queries []fmQuery `json:"queries"`
			} `json:"dehydratedState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type fmQuery struct {
	State struct {
		Data []fmInstance `json:"data"`
	} `json:"state"`
}

type fmInstance struct {
	Event     fmEvent `json:"event"`
	StartTime string  `json:"start_time"`
}

type fmEvent struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Types    []string `json:"types"`
	Website  string   `json:"website"`
	Location struct {
		Name    string `json:"name"`
		Address struct {
			Raw string `json:"raw"`
		} `json:"address"`
	} `json:"location"`
	Cost struct {
		Option      string          `json:"option"`
		Value       json.RawMessage `json:"value"`
		ValueCustom string          `json:"value_custom"`
	} `json:"cost"`
	SignupType struct {
		Option string `json:"option"`
		Value  string `json:"value"`
	} `json:"signup_type"`
	Frequency struct {
		Option    string `json:"option"`
		Instances []struct {
			Weekday   json.RawMessage `json:"weekday"`
			StartTime string          `json:"start_time"`
		} `json:"instances"`
	} `json:"frequency"`
}

func (f *Firemics) Scrape(ctx context.Context) Result {
	var res Result

	page, err := fetchPage(ctx, f.client, f.url)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parse page html: %v", err))
		return res
	}

	blob := doc.Find("script#__NEXT_DATA__").Text()
	if strings.TrimSpace(blob) == "" {
		res.Errors = append(res.Errors,
			"could not find __NEXT_DATA__ script tag; firemics may have changed its website structure")
		return res
	}

	var next fmNextData
	if err := json.Unmarshal([]byte(blob), &next); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to parse __NEXT_DATA__ JSON: %v", err))
		return res
	}

	if next.Props.PageProps.DehydratedState == nil {
		res.Errors = append(res.Errors,
			"could not find dehydrated state in page data; firemics may have changed its data structure")
		return res
	}

	// The event query is the one with the largest data array.
	var instances []fmInstance
	for _, q := range next.Props.PageProps.DehydratedState.Queries {
		if len(q.State.Data) > len(instances) {
			instances = q.State.Data
		}
	}
	if len(instances) == 0 {
		res.Errors = append(res.Errors, "no event data found in any query")
		return res
	}

	res.RawCount = len(instances)

	seen := make(map[int64]bool)
	for _, inst := range instances {
		mics, err := parseFiremicsInstance(inst, seen)
		if err != nil {
			// One malformed event must never abort the whole batch.
			res.Errors = append(res.Errors, fmt.Sprintf("error parsing event %q: %v", inst.Event.Name, err))
			continue
		}
		res.Mics = append(res.Mics, mics...)
	}
	return res
}

func parseFiremicsInstance(inst fmInstance, seen map[int64]bool) ([]Mic, error) {
	event := inst.Event

	// Same mic, different date.
	if seen[event.ID] {
		return nil, nil
	}
	seen[event.ID] = true

	if len(event.Types) > 0 && !containsString(event.Types, "comedy") {
		return nil, nil
	}

	micName := strings.TrimSpace(event.Name)
	if micName == "" {
		return nil, nil
	}

	// "201 W 75th St, New York, NY 10023, USA" -> street + city
	addressParts := strings.Split(event.Location.Address.Raw, ",")
	street := strings.TrimSpace(addressParts[0])
	city := ""
	if len(addressParts) > 1 {
		city = strings.TrimSpace(addressParts[1])
	}

	cost, err := parseFiremicsCost(event)
	if err != nil {
		return nil, err
	}
	signupMethod, signupURL := parseFiremicsSignup(event)
	neighborhood := InferNeighborhood(street, city)

	dayTimes := firemicsDayTimes(inst)
	if len(dayTimes) == 0 {
		return nil, nil
	}

	mics := make([]Mic, 0, len(dayTimes))
	for _, dt := range dayTimes {
		mics = append(mics, Mic{
			Name:         micName,
			Venue:        strings.TrimSpace(event.Location.Name),
			Address:      street,
			Neighborhood: neighborhood,
			Borough:      InferBorough(city, neighborhood),
			DayOfWeek:    dt.day,
			StartTime:    dt.start,
			DisplayTime:  DisplayTime(dt.start),
			Cost:         cost,
			SignupMethod: signupMethod,
			SignupURL:    signupURL,
			VenueURL:     event.Website,
			IsBiweekly:   event.Frequency.Option == "biweekly",
			Source:       SourceFiremics,
		})
	}
	return mics, nil
}

type dayTime struct {
	day   string
	start string
}

// firemicsDayTimes collects the (weekday, start time) pairs an event
// runs on. The weekday field is a string for weekly mics and a list
// for mics running multiple days per week; each weekday becomes its
// own record. With no frequency instances, the concrete instance start
// timestamp is the fallback.
func firemicsDayTimes(inst fmInstance) []dayTime {
	var pairs []dayTime

	for _, freq := range inst.Event.Frequency.Instances {
		if len(freq.StartTime) < 5 {
			continue
		}
		start := freq.StartTime[:5]

		var days []string
		var single string
		if err := json.Unmarshal(freq.Weekday, &days); err != nil {
			if err := json.Unmarshal(freq.Weekday, &single); err != nil || single == "" {
				continue
			}
			days = []string{single}
		}
		for _, d := range days {
			if day := canonicalDay(d); day != "" {
				pairs = append(pairs, dayTime{day: day, start: start})
			}
		}
	}

	if len(pairs) == 0 && inst.StartTime != "" {
		ts, err := time.Parse(time.RFC3339, inst.StartTime)
		if err == nil {
			pairs = append(pairs, dayTime{
				day:   ts.Weekday().String(),
				start: ts.Format("15:04"),
			})
		}
	}
	return pairs
}

// canonicalDay maps "thursday" to "Thursday", returning "" for unknown
// values.
func canonicalDay(raw string) string {
	day := strings.ToLower(strings.TrimSpace(raw))
	if day == "" {
		return ""
	}
	day = strings.ToUpper(day[:1]) + day[1:]
	if !ValidDays[day] {
		return ""
	}
	return day
}

func parseFiremicsCost(event fmEvent) (string, error) {
	cost := event.Cost
	if cost.Option == "free" {
		return "Free", nil
	}
	if cost.Option == "custom" {
		if cost.ValueCustom != "" {
			return cost.ValueCustom, nil
		}
		return "Varies", nil
	}
	if len(cost.Value) == 0 || string(cost.Value) == "null" {
		return "", nil
	}

	var value float64
	if err := json.Unmarshal(cost.Value, &value); err != nil {
		// Non-numeric value, e.g. a quoted string.
		var s string
		if err := json.Unmarshal(cost.Value, &s); err != nil {
			return "", fmt.Errorf("unrecognized cost value %s", cost.Value)
		}
		return "$" + s, nil
	}
	if value == 0 {
		return "Free", nil
	}
	// Round to a whole dollar when close, e.g. 5.85 -> "$6".
	rounded := math.Round(value)
	if math.Abs(value-rounded) < 0.5 {
		return fmt.Sprintf("$%d", int64(rounded)), nil
	}
	return fmt.Sprintf("$%.2f", value), nil
}

func parseFiremicsSignup(event fmEvent) (method, url string) {
	option := event.SignupType.Option
	value := event.SignupType.Value
	switch {
	case strings.Contains(option, "online"):
		return "online", value
	case strings.Contains(option, "email"):
		return "email", value
	}
	return "in_person", ""
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
