package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const eastvilleURL = "https://www.eastvillecomedy.com/calendar"

// All EastVille events happen at the same venue.
const (
	eastvilleVenue        = "EastVille Comedy Club"
	eastvilleAddress      = "487 Atlantic Ave"
	eastvilleNeighborhood = "Brooklyn"
	eastvilleBorough      = "Brooklyn"
)

// eastvilleMicKeywords identify the club's open-mic brands among its
// regular shows.
var eastvilleMicKeywords = []string{
	"open mic", "pen mic", "mecca mic", "new sh",
	"no name", "ethically ambiguous", "trauma dump",
	"late night open", "marathon",
}

// Eastville scrapes eastvillecomedy.com's calendar. The page embeds
// schema.org JSON-LD blocks, one per event, so the data is already
// structured. Each <script type="application/ld+json"> is decoded
// independently: a decode failure in one block is recorded as a
// non-fatal error and the remaining blocks are still processed.
type Eastville struct {
	client *http.Client
	url    string
}

// NewEastville creates a new EastVille scraper.
func NewEastville() *Eastville {
	return &Eastville{client: newClient(), url: eastvilleURL}
}

func (e *Eastville) Name() SourceName { return SourceEastville }

// ldEvent is the subset of a schema.org event we read.
type ldEvent struct {
	Type      string   `json:"@type"`
	Name      string   `json:"name"`
	StartDate string   `json:"startDate"`
	URL       string   `json:"url"`
	Offers    ldOffers `json:"offers"`
}

type ldOffers struct {
	Price string `json:"price"`
}

func (e *Eastville) Scrape(ctx context.Context) Result {
	var res Result

	page, err := fetchPage(ctx, e.client, e.url)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parse calendar html: %v", err))
		return res
	}

	blocks := doc.Find(`script[type="application/ld+json"]`)
	if blocks.Length() == 0 {
		res.Errors = append(res.Errors,
			"no JSON-LD data found on the page; eastville may have changed its website structure")
		return res
	}

	var events []ldEvent
	blocks.Each(func(_ int, sel *goquery.Selection) {
		decoded, err := decodeLDBlock(sel.Text())
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to parse a JSON-LD block: %v", err))
			return
		}
		events = append(events, decoded...)
	})

	res.RawCount = len(events)

	for _, event := range events {
		if mic, ok := e.parseEvent(event, &res); ok {
			res.Mics = append(res.Mics, mic)
		}
	}
	return res
}

// decodeLDBlock handles the shapes JSON-LD shows up in: a single event
// object, a list of events, or a wrapper holding a @graph or event key.
func decodeLDBlock(raw string) ([]ldEvent, error) {
	trimmed := strings.TrimSpace(raw)

	var list []ldEvent
	if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
		return list, nil
	}

	var single ldEvent
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, err
	}
	if single.Type == "ComedyEvent" || single.Type == "Event" {
		return []ldEvent{single}, nil
	}

	var wrapper struct {
		Graph []ldEvent       `json:"@graph"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.Graph) > 0 {
		return wrapper.Graph, nil
	}
	if len(wrapper.Event) > 0 {
		var evList []ldEvent
		if err := json.Unmarshal(wrapper.Event, &evList); err == nil {
			return evList, nil
		}
		var ev ldEvent
		if err := json.Unmarshal(wrapper.Event, &ev); err != nil {
			return nil, err
		}
		return []ldEvent{ev}, nil
	}
	return nil, nil
}

func (e *Eastville) parseEvent(event ldEvent, res *Result) (Mic, bool) {
	nameLower := strings.ToLower(event.Name)
	isMic := false
	for _, kw := range eastvilleMicKeywords {
		if strings.Contains(nameLower, kw) {
			isMic = true
			break
		}
	}
	if !isMic {
		return Mic{}, false
	}

	var day, startTime, displayTime string
	if event.StartDate != "" {
		start, err := time.Parse(time.RFC3339, event.StartDate)
		if err != nil {
			res.Errors = append(res.Errors,
				fmt.Sprintf("couldn't parse date for %q: %s", event.Name, event.StartDate))
		} else {
			day = start.Weekday().String()
			startTime = start.Format("15:04")
			displayTime = strings.TrimPrefix(start.Format("03:04 PM"), "0")
		}
	}
	if day == "" || startTime == "" {
		return Mic{}, false
	}

	cost := "1 drink min"
	if price, err := strconv.ParseFloat(event.Offers.Price, 64); err == nil {
		if price > 0 {
			cost = "$" + event.Offers.Price
		} else {
			cost = "Free"
		}
	}

	return Mic{
		Name:         event.Name,
		Venue:        eastvilleVenue,
		Address:      eastvilleAddress,
		Neighborhood: eastvilleNeighborhood,
		Borough:      eastvilleBorough,
		DayOfWeek:    day,
		StartTime:    startTime,
		DisplayTime:  displayTime,
		Cost:         cost,
		SignupMethod: "in_person",
		Instagram:    "@eastvillecomedy",
		VenueURL:     event.URL,
		Source:       SourceEastville,
	}, true
}
