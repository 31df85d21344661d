package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// comedyListingsURLPatterns are tried in order per day; the site has
// moved its paths before. %s is the lowercase day name.
var comedyListingsURLPatterns = []string{
	"https://www.comedylistings.com/new-york-open-mics-%s",
	"https://www.comedylistings.com/new-york-open-mics/%s",
	"https://www.comedylistings.com/open-mics-%s",
}

var comedyListingsDays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// ComedyListings scrapes comedylistings.com, which publishes one page
// per weekday with no embedded structured payload at all. The visible
// page text is scanned line by line: a time token ("7:30PM", "9pm")
// starts a new candidate listing, and following lines are classified
// heuristically into address, cost, signup, name and venue. This is
// inherently lossy and treated as lower confidence than the structured
// sources.
type ComedyListings struct {
	client      *http.Client
	urlPatterns []string
}

// NewComedyListings creates a new comedylistings scraper.
func NewComedyListings() *ComedyListings {
	return &ComedyListings{client: newClient(), urlPatterns: comedyListingsURLPatterns}
}

func (c *ComedyListings) Name() SourceName { return SourceComedyListings }

func (c *ComedyListings) Scrape(ctx context.Context) Result {
	var res Result

	for _, day := range comedyListingsDays {
		dayTitle := strings.ToUpper(day[:1]) + day[1:]

		page, err := c.fetchDay(ctx, day)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", dayTitle, err))
			continue
		}

		mics := parseListingsPage(page, dayTitle)
		if len(mics) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"%s: page loaded but no listings could be parsed; the site structure may have changed", dayTitle))
			continue
		}
		res.RawCount += len(mics)
		res.Mics = append(res.Mics, mics...)
	}
	return res
}

// fetchDay tries each URL pattern until one returns a success status.
func (c *ComedyListings) fetchDay(ctx context.Context, day string) (string, error) {
	var lastErr error
	for _, pattern := range c.urlPatterns {
		page, err := fetchPage(ctx, c.client, fmt.Sprintf(pattern, day))
		if err == nil {
			return page, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("all URL patterns failed (last: %w); the site may be blocking automated requests or has changed its URL structure", lastErr)
}

// contentBlockPattern matches the Squarespace content wrapper classes
// the site has used across redesigns.
var contentBlockPattern = regexp.MustCompile(
	`sqs-block-content|entry-content|content-wrapper|page-section|sqs-col|rich-text|preFade`)

// timeTokenPattern is the only state-entry trigger of the listing
// classifier: a leading "4:30PM", "7:00 PM" or "9pm" starts a record.
var timeTokenPattern = regexp.MustCompile(`(?i)^(\d{1,2}(?::\d{2})?\s*(?:AM|PM))`)

// pageLines extracts the visible text lines of the listing blocks.
func pageLines(page string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var blocks []*goquery.Selection
	doc.Find("div, section").Each(func(_ int, sel *goquery.Selection) {
		if class, ok := sel.Attr("class"); ok && contentBlockPattern.MatchString(class) {
			blocks = append(blocks, sel)
		}
	})
	if len(blocks) == 0 {
		body := doc.Find("main")
		if body.Length() == 0 {
			body = doc.Find("body")
		}
		blocks = append(blocks, body)
	}

	var lines []string
	for _, block := range blocks {
		for _, line := range strings.Split(block.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// classifier states. Listings have no reliable markup, so the text is
// folded through a small state machine: a time token opens a listing,
// then detail lines fill in fields until the next time token.
type listingState int

const (
	awaitingTimeToken listingState = iota
	collectingName
	collectingVenue
	collectingDetails
)

type listingBuilder struct {
	state listingState
	mic   Mic
}

func parseListingsPage(page, dayOfWeek string) []Mic {
	var mics []Mic
	b := &listingBuilder{state: awaitingTimeToken}

	flush := func() {
		if b.state != awaitingTimeToken && b.mic.Name != "" {
			mics = append(mics, finishListing(b.mic))
		}
	}

	for _, line := range pageLines(page) {
		if m := timeTokenPattern.FindStringSubmatch(line); m != nil {
			flush()

			rawTime := strings.ToUpper(strings.TrimSpace(m[1]))
			remainder := strings.TrimSpace(strings.TrimLeft(line[len(m[0]):], " —–-:"))

			b.mic = Mic{
				DayOfWeek:   dayOfWeek,
				DisplayTime: rawTime,
				StartTime:   To24Hour(rawTime),
				Name:        remainder,
				Source:      SourceComedyListings,
			}
			if remainder != "" {
				b.state = collectingVenue
			} else {
				b.state = collectingName
			}
			continue
		}

		if b.state == awaitingTimeToken {
			continue
		}
		b.detail(line)
	}
	flush()

	return mics
}

// detail classifies one line within a listing. Address-shaped and
// keyword lines always win; otherwise the line fills the next empty
// identity slot (name, then venue).
func (b *listingBuilder) detail(line string) {
	lower := strings.ToLower(line)

	switch {
	case LooksLikeAddress(line):
		b.mic.Address = line
	case containsAny(lower, "$", "free", "drink min", "item min", "no cover"):
		b.mic.Cost = line
	case containsAny(lower, "sign up", "signup", "first come", "bucket", "list"):
		if b.mic.SignupMethod == "" {
			b.mic.SignupMethod = DetectSignupMethod(line)
			b.mic.SignupNotes = line
		}
	case b.state == collectingName:
		b.mic.Name = line
		b.state = collectingVenue
	case b.state == collectingVenue:
		b.mic.Venue = line
		b.state = collectingDetails
	}
}

// finishListing fills derived fields on a completed listing.
func finishListing(mic Mic) Mic {
	if mic.Venue == "" {
		mic.Venue = mic.Name
	}
	mic.Neighborhood = InferNeighborhood(mic.Address, "")
	mic.Borough = listingsBorough(mic.Neighborhood)
	return mic
}

// listingsBorough maps a neighborhood to a borough, leaving it empty
// when no neighborhood was inferred: these listings carry no city text
// to fall back on.
func listingsBorough(neighborhood string) string {
	if neighborhood == "" {
		return ""
	}
	return InferBorough("", neighborhood)
}
