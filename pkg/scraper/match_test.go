package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mic(name, venue, address, day string) Mic {
	return Mic{Name: name, Venue: venue, Address: address, DayOfWeek: day}
}

func TestMatchVenueTokens(t *testing.T) {
	existing := []Mic{mic("Greenie Mic", "The Green Room", "102 W 3rd St", "Tuesday")}

	// Same venue spelled differently still shares the "green" and
	// "room" tokens.
	fresh := []Mic{mic("Open Mic Night", "Green Room Comedy", "", "Tuesday")}
	res := Match(fresh, existing, DefaultMatchOptions())
	require.Equal(t, 1, res.Matched)
	require.Empty(t, res.New)
}

func TestMatchDifferentDayNeverMatches(t *testing.T) {
	existing := []Mic{mic("Greenie Mic", "The Green Room", "102 W 3rd St", "Tuesday")}
	fresh := []Mic{mic("Greenie Mic", "The Green Room", "102 W 3rd St", "Wednesday")}

	res := Match(fresh, existing, DefaultMatchOptions())
	require.Equal(t, 0, res.Matched)
	require.Len(t, res.New, 1)
}

func TestMatchNameTokens(t *testing.T) {
	existing := []Mic{mic("Secret Society Open Mic", "Alpha Lounge", "", "Friday")}

	// "open" and "mic" are stopwords for names; "secret" + "society"
	// carry the match even at a different venue.
	fresh := []Mic{mic("Secret Society Mic", "Beta Tavern", "", "Friday")}
	res := Match(fresh, existing, DefaultMatchOptions())
	require.Equal(t, 1, res.Matched)

	// A single shared significant token is not enough.
	fresh = []Mic{mic("Secret Show Mic", "Beta Tavern", "", "Friday")}
	res = Match(fresh, existing, DefaultMatchOptions())
	require.Len(t, res.New, 1)
}

func TestMatchAddressPrefix(t *testing.T) {
	existing := []Mic{mic("A Mic", "Alpha", "487 Atlantic Avenue, Brooklyn", "Monday")}
	fresh := []Mic{mic("B Mic", "Beta", "487 ATLANTIC AVE", "Monday")}

	res := Match(fresh, existing, DefaultMatchOptions())
	require.Equal(t, 1, res.Matched)

	// With the prefix predicate disabled the same pair is new.
	res = Match(fresh, existing, MatchOptions{MinVenueTokens: 1, MinNameTokens: 2})
	require.Len(t, res.New, 1)
}

func TestMatchSkipsMissingWeekday(t *testing.T) {
	existing := []Mic{mic("A Mic", "Alpha", "", "Monday")}
	fresh := []Mic{mic("A Mic", "Alpha", "", "")}

	res := Match(fresh, existing, DefaultMatchOptions())
	require.Equal(t, 0, res.Matched)
	require.Empty(t, res.New)
}

func TestMatchOrderIndependent(t *testing.T) {
	a := mic("A Mic", "Alpha Bar", "1 First St", "Monday")
	b := mic("B Mic", "Beta Bar", "2 Second St", "Monday")
	fresh := []Mic{mic("C Mic", "Gamma Hall", "3 Third Ave", "Monday")}

	res1 := Match(fresh, []Mic{a, b}, DefaultMatchOptions())
	res2 := Match(fresh, []Mic{b, a}, DefaultMatchOptions())
	require.Equal(t, res1.Matched, res2.Matched)
	require.Equal(t, len(res1.New), len(res2.New))
}

func TestMatchIdempotentAfterInsert(t *testing.T) {
	existing := []Mic{mic("A Mic", "Alpha Bar", "1 First St", "Monday")}
	fresh := []Mic{
		mic("Fresh Mic", "New Spot", "9 Ninth Ave", "Monday"),
		mic("A Mic", "Alpha Bar", "1 First St", "Monday"),
	}

	res := Match(fresh, existing, DefaultMatchOptions())
	require.Len(t, res.New, 1)

	// After inserting the new mic a rescrape matches everything.
	existing = append(existing, res.New...)
	res = Match(fresh, existing, DefaultMatchOptions())
	require.Empty(t, res.New)
	require.Equal(t, 2, res.Matched)
}

func TestMatchDiff(t *testing.T) {
	existing := []Mic{{
		ID: 7, Name: "A Mic", Venue: "Alpha Bar", DayOfWeek: "Monday",
		StartTime: "19:00", Cost: "Free",
	}}
	fresh := []Mic{{
		Name: "A Mic", Venue: "Alpha Bar", DayOfWeek: "Monday",
		StartTime: "20:00", Cost: "Free",
	}}

	res := MatchDiff(fresh, existing, DefaultMatchOptions())
	require.Empty(t, res.New)
	require.Equal(t, 0, res.Confirmed)
	require.Len(t, res.Changed, 1)

	ch := res.Changed[0]
	require.Equal(t, int64(7), ch.ExistingID)
	require.Equal(t, [2]string{"19:00", "20:00"}, ch.Fields["start_time"])

	// Identical volatile fields count as confirmed.
	fresh[0].StartTime = "19:00"
	res = MatchDiff(fresh, existing, DefaultMatchOptions())
	require.Equal(t, 1, res.Confirmed)
	require.Empty(t, res.Changed)
}

func TestOptionsFor(t *testing.T) {
	// Badslava never matches on names, eastville never on venues (all
	// its venues are identical), firemics skips the address fallback.
	require.Equal(t, 0, OptionsFor(SourceBadslava).MinNameTokens)
	require.Equal(t, 0, OptionsFor(SourceEastville).MinVenueTokens)
	require.Equal(t, 0, OptionsFor(SourceFiremics).AddressPrefixLen)
	require.Equal(t, DefaultMatchOptions(), OptionsFor(SourceComedyListings))
}
