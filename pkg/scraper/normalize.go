package scraper

import (
	"regexp"
	"strings"
	"time"
)

// Shared field normalization used by every scraper. The hint tables are
// merged supersets: each source seeing only its own subset of streets
// caused the per-source tables to drift, so there is exactly one copy.

// ValidDays is the canonical day-of-week spelling used everywhere.
var ValidDays = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

// nycCities are the city names kept when filtering statewide listings
// down to the five boroughs.
var nycCities = []string{
	"new york", "brooklyn", "bronx", "queens", "staten island",
	"long island city", "astoria", "flushing", "jamaica",
}

// IsNYC reports whether a city string (the part before any comma) names
// an NYC-area city.
func IsNYC(city string) bool {
	c := strings.ToLower(strings.TrimSpace(strings.SplitN(city, ",", 2)[0]))
	for _, nyc := range nycCities {
		if strings.Contains(c, nyc) {
			return true
		}
	}
	return false
}

var tagPattern = regexp.MustCompile(`<.*?>`)

// StripTags removes HTML tags and unescapes the forward slashes that
// badslava's inline array escapes.
func StripTags(s string) string {
	return strings.ReplaceAll(tagPattern.ReplaceAllString(s, ""), `\/`, "/")
}

// To24Hour converts "7:00pm" to "19:00", "5:30 PM" to "17:30", "9pm" to
// "21:00". If the input can't be parsed it is returned unchanged: sort
// order for such records is undefined but the record must not be lost.
func To24Hour(s string) string {
	compact := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))

	layout := "3PM"
	if strings.Contains(compact, ":") {
		layout = "3:04PM"
	}
	t, err := time.Parse(layout, compact)
	if err != nil {
		return s
	}
	return t.Format("15:04")
}

// DisplayTime converts "20:00" to "8:00 PM". Unparsable input is
// returned unchanged.
func DisplayTime(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return strings.TrimPrefix(t.Format("03:04 PM"), "0")
}

// neighborhoodHints maps address/city substrings to NYC neighborhoods.
// Rough by design: first hit wins and misses return "".
var neighborhoodHints = []struct {
	hint string
	hood string
}{
	{"rivington", "LES"}, {"orchard", "LES"}, {"ludlow", "LES"}, {"allen", "LES"}, {"les", "LES"},
	{"st marks", "East Village"}, {"east village", "East Village"},
	{"e 1", "East Village"}, {"e. 1", "East Village"}, {"1st ave", "East Village"},
	{"ave a", "East Village"}, {"ave b", "East Village"}, {"ave c", "East Village"},
	{"e 14", "East Village"},
	{"west village", "West Village"},
	{"macdougal", "Greenwich Village"}, {"bleecker", "Greenwich Village"}, {"sullivan", "Greenwich Village"},
	{"soho", "SoHo"}, {"vandam", "SoHo"}, {"spring", "SoHo"}, {"houston", "SoHo"},
	{"uws", "UWS"}, {"upper west", "UWS"},
	{"w 7", "UWS"}, {"w 8", "UWS"}, {"w. 7", "UWS"}, {"w. 8", "UWS"},
	{"75th st", "UWS"}, {"w 75", "UWS"},
	{"ues", "UES"}, {"upper east", "UES"}, {"2nd ave", "UES"},
	{"gramercy", "Gramercy"},
	{"times sq", "Midtown"}, {"42nd", "Midtown"}, {"midtown", "Midtown"}, {"broadway", "Midtown"},
	{"chelsea", "Chelsea"}, {"w 23", "Chelsea"}, {"23rd", "Chelsea"}, {"w 14", "Chelsea"},
	{"hells kitchen", "Hell's Kitchen"}, {"hell's kitchen", "Hell's Kitchen"},
	{"14th st", "Union Square"},
	{"harlem", "Harlem"}, {"nicholas", "Harlem"},
	{"gowanus", "Gowanus"},
	{"williamsburg", "Williamsburg"}, {"bedford", "Williamsburg"}, {"berry", "Williamsburg"},
	{"bushwick", "Bushwick"},
	{"south slope", "South Slope"},
	{"park slope", "Park Slope"}, {"5th ave", "Park Slope"},
	{"smith st", "Boerum Hill"}, {"court st", "Cobble Hill"},
	{"atlantic", "Brooklyn"}, {"fulton", "Brooklyn"}, {"brooklyn", "Brooklyn"},
	{"astoria", "Astoria"}, {"queens", "Queens"},
	{"bruckner", "Bronx"}, {"bronx", "Bronx"},
}

// InferNeighborhood guesses an NYC neighborhood from address and city
// text. The address is scanned before the city so that a city like
// "Brooklyn" can't shadow a street-level hint (or, worse, glue onto
// the address and fake one). Returns "" when nothing matches.
func InferNeighborhood(address, city string) string {
	for _, text := range []string{strings.ToLower(address), strings.ToLower(city)} {
		for _, h := range neighborhoodHints {
			if strings.Contains(text, h.hint) {
				return h.hood
			}
		}
	}
	return ""
}

var brooklynHoods = map[string]bool{
	"Brooklyn": true, "Park Slope": true, "Gowanus": true,
	"Williamsburg": true, "Bushwick": true, "South Slope": true,
	"Boerum Hill": true, "Cobble Hill": true,
}

// InferBorough maps city text and an inferred neighborhood to a borough.
// Defaults to Manhattan, matching where most unlabeled listings are.
func InferBorough(city, neighborhood string) string {
	c := strings.ToLower(city)
	switch {
	case strings.Contains(c, "brooklyn"):
		return "Brooklyn"
	case strings.Contains(c, "bronx"):
		return "Bronx"
	case strings.Contains(c, "queens"), strings.Contains(c, "astoria"):
		return "Queens"
	case strings.Contains(c, "staten island"):
		return "Staten Island"
	case brooklynHoods[neighborhood]:
		return "Brooklyn"
	case neighborhood == "Bronx":
		return "Bronx"
	case neighborhood == "Queens", neighborhood == "Astoria":
		return "Queens"
	}
	return "Manhattan"
}

var addressPattern = regexp.MustCompile(
	`(?i)\d+\s+(W|E|N|S|West|East|North|South)?\s*\d*\s*\w+\s+` +
		`(St|Ave|Blvd|Rd|Way|Pl|Dr|Ln|Ct|Broadway|Street|Avenue|Place)`)

// LooksLikeAddress reports whether text resembles a street address,
// e.g. "123 Main St" or "487 Atlantic Ave".
func LooksLikeAddress(text string) bool {
	return addressPattern.MatchString(text)
}

// DetectSignupMethod classifies descriptive signup text into one of the
// canonical signup methods.
func DetectSignupMethod(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "online", "website", "link", "book"):
		return "online"
	case containsAny(lower, "email", "e-mail"):
		return "email"
	case containsAny(lower, "dm", "instagram", "ig"):
		return "instagram_dm"
	}
	return "in_person"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
