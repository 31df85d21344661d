package scraper

import "strings"

// Matching is deliberately cheap and explainable rather than
// similarity-scored. Source sites spell venue and mic names
// inconsistently ("The Green Room" vs "Green Room Comedy"), so two
// loose predicates are tried in order and the first hit wins. A missed
// duplicate just resurfaces a known mic for review; a false merge
// would silently hide a genuinely new venue, so false negatives are
// the cheaper failure.

// venueStopwords are dropped before comparing venue names.
var venueStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "at": true, "in": true,
}

// nameStopwords additionally drop "open" and "mic", which appear in
// nearly every mic name and would otherwise match everything.
var nameStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "at": true, "in": true,
	"open": true, "mic": true,
}

// MatchOptions tune the lexical predicates per source. The thresholds
// intentionally differ between sources (badslava matches on venue
// tokens alone, firemics also accepts two shared name tokens,
// eastville matches on name only since all its venues are identical)
// and are kept configurable rather than unified: the tuning differs
// deliberately and there is no evidence which variant is
// authoritative.
type MatchOptions struct {
	// MinVenueTokens is the number of shared significant venue tokens
	// required for a venue match. Zero disables venue matching.
	MinVenueTokens int
	// MinNameTokens is the number of shared significant name tokens
	// required for a name match. Zero disables name matching.
	MinNameTokens int
	// AddressPrefixLen is the number of leading address characters
	// compared by the fallback predicate. Zero disables it.
	AddressPrefixLen int
}

// DefaultMatchOptions matches on venue tokens plus the address prefix
// fallback, with name matching requiring two shared tokens.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{MinVenueTokens: 1, MinNameTokens: 2, AddressPrefixLen: 10}
}

// OptionsFor returns the tuning each source shipped with.
func OptionsFor(source SourceName) MatchOptions {
	switch source {
	case SourceBadslava:
		return MatchOptions{MinVenueTokens: 1, AddressPrefixLen: 10}
	case SourceFiremics:
		return MatchOptions{MinVenueTokens: 1, MinNameTokens: 2}
	case SourceEastville:
		return MatchOptions{MinNameTokens: 2}
	}
	return DefaultMatchOptions()
}

// MatchResult partitions freshly scraped mics against the store.
type MatchResult struct {
	New     []Mic
	Matched int
}

// Change records a matched pair whose volatile fields differ.
type Change struct {
	ExistingID int64                `json:"existing_id"`
	Name       string               `json:"name"`
	Day        string               `json:"day"`
	Fields     map[string][2]string `json:"fields"` // field -> {old, new}
}

// DiffResult additionally buckets matched pairs whose start time or
// cost changed.
type DiffResult struct {
	New       []Mic
	Changed   []Change
	Confirmed int
}

// Match classifies each fresh mic as new or already known. A fresh mic
// is matched by the first existing mic on the same weekday that shares
// a significant venue token, shares MinNameTokens significant name
// tokens, or has the same address prefix. Fresh mics without a weekday
// are skipped entirely: they can't be compared, so they are neither
// matched nor reported as new. Classification never depends on the
// order of existing.
func Match(fresh, existing []Mic, opts MatchOptions) MatchResult {
	var res MatchResult
	for _, f := range fresh {
		if f.DayOfWeek == "" {
			continue
		}
		if findMatch(f, existing, opts) >= 0 {
			res.Matched++
		} else {
			res.New = append(res.New, f)
		}
	}
	return res
}

// MatchDiff is Match plus change detection on the volatile fields
// (start time, cost) of each matched pair.
func MatchDiff(fresh, existing []Mic, opts MatchOptions) DiffResult {
	var res DiffResult
	for _, f := range fresh {
		if f.DayOfWeek == "" {
			continue
		}
		i := findMatch(f, existing, opts)
		if i < 0 {
			res.New = append(res.New, f)
			continue
		}

		e := existing[i]
		fields := make(map[string][2]string)
		if f.StartTime != "" && f.StartTime != e.StartTime {
			fields["start_time"] = [2]string{e.StartTime, f.StartTime}
		}
		if f.Cost != "" && f.Cost != e.Cost {
			fields["cost"] = [2]string{e.Cost, f.Cost}
		}
		if len(fields) == 0 {
			res.Confirmed++
			continue
		}
		res.Changed = append(res.Changed, Change{
			ExistingID: e.ID,
			Name:       e.Name,
			Day:        f.DayOfWeek,
			Fields:     fields,
		})
	}
	return res
}

// findMatch returns the index of the first existing mic matching f, or
// -1. First-match wins; there is no scoring or ranking.
func findMatch(f Mic, existing []Mic, opts MatchOptions) int {
	fVenue := significantTokens(f.Venue, venueStopwords)
	fName := significantTokens(f.Name, nameStopwords)
	fAddr := addressPrefix(f.Address, opts.AddressPrefixLen)

	for i, e := range existing {
		if e.DayOfWeek != f.DayOfWeek {
			continue
		}
		if opts.MinVenueTokens > 0 &&
			sharedTokens(fVenue, significantTokens(e.Venue, venueStopwords)) >= opts.MinVenueTokens {
			return i
		}
		if opts.MinNameTokens > 0 &&
			sharedTokens(fName, significantTokens(e.Name, nameStopwords)) >= opts.MinNameTokens {
			return i
		}
		if fAddr != "" && fAddr == addressPrefix(e.Address, opts.AddressPrefixLen) {
			return i
		}
	}
	return -1
}

func significantTokens(s string, stopwords map[string]bool) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if !stopwords[word] {
			tokens[word] = true
		}
	}
	return tokens
}

func sharedTokens(a, b map[string]bool) int {
	n := 0
	for token := range a {
		if b[token] {
			n++
		}
	}
	return n
}

func addressPrefix(address string, length int) string {
	if length <= 0 || address == "" {
		return ""
	}
	a := strings.ToLower(address)
	if len(a) > length {
		a = a[:length]
	}
	return a
}
