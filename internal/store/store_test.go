package store

import (
	"context"
	"path/filepath"
	"testing"

	"mictrack/pkg/scraper"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMic(name, venue, day, start string) *scraper.Mic {
	return &scraper.Mic{
		Name: name, Venue: venue, Address: "1 Test St",
		DayOfWeek: day, StartTime: start, Cost: "Free",
	}
}

func TestAddAndGetMic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Test Mic", "Test Venue", "Monday", "19:00")
	mic.Source = scraper.SourceBadslava
	require.NoError(t, s.AddMic(ctx, mic))
	require.NotZero(t, mic.ID)
	require.True(t, mic.IsActive)

	got, err := s.GetMic(ctx, mic.ID)
	require.NoError(t, err)
	require.Equal(t, "Test Mic", got.Name)
	require.Equal(t, "Test Venue", got.Venue)
	require.Equal(t, "19:00", got.StartTime)
	// Source is transient and never persisted.
	require.Empty(t, got.Source)
	require.Nil(t, got.Latitude)

	_, err = s.GetMic(ctx, 9999)
	require.Error(t, err)
}

func TestListActiveMicsOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMic(ctx, testMic("C", "V3", "Sunday", "18:00")))
	require.NoError(t, s.AddMic(ctx, testMic("B", "V2", "Monday", "21:00")))
	require.NoError(t, s.AddMic(ctx, testMic("A", "V1", "Monday", "19:00")))

	mics, err := s.ListActiveMics(ctx)
	require.NoError(t, err)
	require.Len(t, mics, 3)

	// Weekday order, then start time: SQLite alone would have sorted
	// "Monday" after nothing and "Sunday" before it.
	require.Equal(t, "A", mics[0].Name)
	require.Equal(t, "B", mics[1].Name)
	require.Equal(t, "C", mics[2].Name)
}

func TestMicsByDay(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMic(ctx, testMic("Mon Mic", "V1", "Monday", "19:00")))
	require.NoError(t, s.AddMic(ctx, testMic("Tue Mic", "V2", "Tuesday", "19:00")))

	mics, err := s.MicsByDay(ctx, "Monday")
	require.NoError(t, err)
	require.Len(t, mics, 1)
	require.Equal(t, "Mon Mic", mics[0].Name)
}

func TestUpdateMic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Old Name", "V", "Monday", "19:00")
	require.NoError(t, s.AddMic(ctx, mic))

	err := s.UpdateMic(ctx, mic.ID, map[string]any{
		"name":       "New Name",
		"start_time": "20:00",
	})
	require.NoError(t, err)

	got, err := s.GetMic(ctx, mic.ID)
	require.NoError(t, err)
	require.Equal(t, "New Name", got.Name)
	require.Equal(t, "20:00", got.StartTime)
	// Untouched fields survive a partial update.
	require.Equal(t, "V", got.Venue)

	// Unknown columns are rejected, not ignored.
	err = s.UpdateMic(ctx, mic.ID, map[string]any{"is_active": 0})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown column")

	require.NoError(t, s.SetMicRating(ctx, mic.ID, 7.5))
	got, err = s.GetMic(ctx, mic.ID)
	require.NoError(t, err)
	require.Equal(t, 7.5, got.MicRating)
}

func TestDeactivateMic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Doomed Mic", "V", "Monday", "19:00")
	require.NoError(t, s.AddMic(ctx, mic))
	require.NoError(t, s.SetPlan(ctx, mic.ID, "2026-09-07", PlanGoing))

	require.NoError(t, s.DeactivateMic(ctx, mic.ID))

	mics, err := s.ListActiveMics(ctx)
	require.NoError(t, err)
	require.Empty(t, mics)

	// Soft delete: the row still resolves by id.
	got, err := s.GetMic(ctx, mic.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	// Its plans are gone.
	plans, err := s.PlansForRange(ctx, "2026-09-01", "2026-09-30")
	require.NoError(t, err)
	require.Empty(t, plans)
}

func TestSets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Set Mic", "V", "Monday", "19:00")
	require.NoError(t, s.AddMic(ctx, mic))

	entry := &SetEntry{MicID: mic.ID, DatePerformed: "2026-08-24", SetRating: 7, Notes: "solid"}
	require.NoError(t, s.AddSet(ctx, entry))
	require.NotZero(t, entry.ID)

	has, err := s.HasSetOn(ctx, mic.ID, "2026-08-24")
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.HasSetOn(ctx, mic.ID, "2026-08-25")
	require.NoError(t, err)
	require.False(t, has)

	count, err := s.SetCountForMic(ctx, mic.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, s.UpdateSet(ctx, entry.ID, map[string]any{
		"crowd_rating": 9,
		"would_return": true,
	}))

	sets, err := s.SetsForMic(ctx, mic.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Equal(t, 7, sets[0].SetRating)
	require.Equal(t, 9, sets[0].CrowdRating)
	require.True(t, sets[0].WouldReturn)

	joined, err := s.ListSets(ctx)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	require.Equal(t, "Set Mic", joined[0].MicName)
	require.Equal(t, "V", joined[0].Venue)
}

func TestSetsSurviveDeactivation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Gone Mic", "V", "Monday", "19:00")
	require.NoError(t, s.AddMic(ctx, mic))
	require.NoError(t, s.AddSet(ctx, &SetEntry{MicID: mic.ID, DatePerformed: "2026-08-24"}))
	require.NoError(t, s.DeactivateMic(ctx, mic.ID))

	joined, err := s.ListSets(ctx)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	require.Equal(t, "Gone Mic", joined[0].MicName)
}

func TestPlanUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Plan Mic", "V", "Monday", "19:00")
	require.NoError(t, s.AddMic(ctx, mic))

	require.NoError(t, s.SetPlan(ctx, mic.ID, "2026-09-07", PlanGoing))
	// Flipping the status reuses the row instead of violating the
	// unique constraint.
	require.NoError(t, s.SetPlan(ctx, mic.ID, "2026-09-07", PlanCancelled))

	plans, err := s.PlansForRange(ctx, "2026-09-07", "2026-09-07")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, PlanCancelled, plans[0].Status)
	require.Equal(t, "Plan Mic", plans[0].MicName)

	require.Error(t, s.SetPlan(ctx, mic.ID, "2026-09-07", "maybe"))

	require.NoError(t, s.RemovePlan(ctx, mic.ID, "2026-09-07"))
	plans, err = s.PlansForRange(ctx, "2026-09-07", "2026-09-07")
	require.NoError(t, err)
	require.Empty(t, plans)
}

func TestGoingMicIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := testMic("A", "V1", "Monday", "19:00")
	b := testMic("B", "V2", "Tuesday", "19:00")
	require.NoError(t, s.AddMic(ctx, a))
	require.NoError(t, s.AddMic(ctx, b))

	require.NoError(t, s.SetPlan(ctx, a.ID, "2026-09-07", PlanGoing))
	require.NoError(t, s.SetPlan(ctx, b.ID, "2026-09-08", PlanCancelled))

	going, err := s.GoingMicIDs(ctx, "2026-09-07", "2026-09-13")
	require.NoError(t, err)
	require.True(t, going[a.ID])
	require.False(t, going[b.ID])
}

func TestCoordinates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mic := testMic("Geo Mic", "V", "Monday", "19:00")
	require.NoError(t, s.AddMic(ctx, mic))

	missing, err := s.MicsMissingCoordinates(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	require.NoError(t, s.SetCoordinates(ctx, mic.ID, 40.68, -73.98))

	missing, err = s.MicsMissingCoordinates(ctx)
	require.NoError(t, err)
	require.Empty(t, missing)

	with, err := s.MicsWithCoordinates(ctx)
	require.NoError(t, err)
	require.Len(t, with, 1)
	require.NotNil(t, with[0].Latitude)
	require.InDelta(t, 40.68, *with[0].Latitude, 0.001)
}

func TestScrapeLog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogScrape(ctx, "badslava", "success", "12 scraped, 10 matched, 2 new"))
	require.NoError(t, s.LogScrape(ctx, "firemics", "error", "fetch failed"))

	attempts, err := s.ScrapeHistory(ctx)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		require.False(t, a.ScrapedAt.IsZero())
	}
}
