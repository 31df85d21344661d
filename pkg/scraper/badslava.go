package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const badslavaURL = "https://badslava.com/open-mics-state.php?state=NY&type=Comedy"

// Badslava scrapes badslava.com's New York comedy listings. The site
// embeds every mic in an inline script variable:
//
//	var venue = ["Monday<br>Mic Name<br><b>Venue</b><br>...", ...];
//
// Each entry is a single string with <br>-delimited positional fields
// (day, mic name, venue, street address, "City, ST", time, cost,
// frequency, phone), so it is split positionally rather than parsed as
// JSON. Badslava covers all of NY state; entries outside NYC are
// dropped but still counted in RawCount.
type Badslava struct {
	client *http.Client
	url    string
}

// NewBadslava creates a new badslava scraper.
func NewBadslava() *Badslava {
	return &Badslava{client: newClient(), url: badslavaURL}
}

func (b *Badslava) Name() SourceName { return SourceBadslava }

var badslavaArrayPattern = regexp.MustCompile(`(?s)var\s+venue\s*=\s*\[(.*?)\];`)
var badslavaEntryPattern = regexp.MustCompile(`"([^"]*)"`)

func (b *Badslava) Scrape(ctx context.Context) Result {
	var res Result

	page, err := fetchPage(ctx, b.client, b.url)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	arrayMatch := badslavaArrayPattern.FindStringSubmatch(page)
	if arrayMatch == nil {
		res.Errors = append(res.Errors,
			"could not find the 'venue' script array in the page; badslava may have changed its page structure")
		return res
	}

	entries := badslavaEntryPattern.FindAllStringSubmatch(arrayMatch[1], -1)
	res.RawCount = len(entries)

	for _, entry := range entries {
		if mic, ok := b.parseEntry(entry[1]); ok {
			res.Mics = append(res.Mics, mic)
		}
	}
	return res
}

// parseEntry converts one <br>-delimited entry into a Mic. Entries that
// are malformed, outside NYC, or missing a valid weekday are skipped
// silently; partial listings are common in the feed.
func (b *Badslava) parseEntry(entry string) (Mic, bool) {
	raw := strings.Split(strings.ReplaceAll(entry, "\n", ""), "<br>")
	fields := make([]string, len(raw))
	for i, f := range raw {
		fields[i] = strings.TrimSpace(f)
	}

	// day, name, venue, address, city and time are mandatory positions
	if len(fields) < 6 {
		return Mic{}, false
	}

	day := fields[0]
	micName := strings.TrimSpace(StripTags(fields[1]))
	venueName := strings.TrimSpace(StripTags(fields[2]))
	address := strings.TrimSpace(StripTags(fields[3]))
	cityState := strings.TrimSpace(StripTags(fields[4]))
	timeStr := fields[5]

	var cost, frequency string
	if len(fields) > 6 {
		cost = strings.TrimSpace(StripTags(fields[6]))
	}
	if len(fields) > 7 {
		frequency = strings.TrimSpace(StripTags(fields[7]))
	}

	if !IsNYC(cityState) {
		return Mic{}, false
	}
	if !ValidDays[day] {
		return Mic{}, false
	}

	freqLower := strings.ToLower(frequency)
	isBiweekly := strings.Contains(freqLower, "biweekly")
	isMonthly := strings.Contains(freqLower, "monthly")

	if micName == "" {
		micName = venueName + " Open Mic"
	}

	neighborhood := InferNeighborhood(address, cityState)

	mic := Mic{
		Name:         micName,
		Venue:        venueName,
		Address:      address,
		Neighborhood: neighborhood,
		Borough:      InferBorough(cityState, neighborhood),
		DayOfWeek:    day,
		StartTime:    To24Hour(timeStr),
		DisplayTime:  badslavaDisplayTime(timeStr),
		Cost:         cost,
		SignupMethod: "in_person", // badslava doesn't specify
		IsBiweekly:   isBiweekly,
		Source:       SourceBadslava,
	}
	if isMonthly {
		mic.Notes = fmt.Sprintf("Frequency: %s", frequency)
	}
	return mic, true
}

// badslavaDisplayTime turns "7:00pm" into "7:00 PM".
func badslavaDisplayTime(timeStr string) string {
	s := strings.ToUpper(timeStr)
	s = strings.ReplaceAll(s, "PM", " PM")
	s = strings.ReplaceAll(s, "AM", " AM")
	return s
}
