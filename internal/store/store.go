package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"mictrack/pkg/scraper"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SetEntry is one logged (or planned) performance. A skeletal entry
// has only mic identity and date; ratings get filled in afterwards.
type SetEntry struct {
	ID            int64     `db:"id" json:"id"`
	MicID         int64     `db:"mic_id" json:"mic_id"`
	DatePerformed string    `db:"date_performed" json:"date_performed"`
	SetRating     int       `db:"set_rating" json:"set_rating"`
	CrowdRating   int       `db:"crowd_rating" json:"crowd_rating"`
	CrowdSize     string    `db:"crowd_size" json:"crowd_size"`
	SetList       string    `db:"set_list" json:"set_list"`
	RecordingURL  string    `db:"recording_url" json:"recording_url"`
	Notes         string    `db:"notes" json:"notes"`
	NewMaterial   bool      `db:"new_material" json:"new_material"`
	GotFeedback   bool      `db:"got_feedback" json:"got_feedback"`
	FeedbackNotes string    `db:"feedback_notes" json:"feedback_notes"`
	WouldReturn   bool      `db:"would_return" json:"would_return"`
	Tags          string    `db:"tags" json:"tags"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SetWithMic joins a set entry with its mic's display fields, so set
// history stays readable even for soft-deleted mics.
type SetWithMic struct {
	SetEntry
	MicName      string `db:"mic_name" json:"mic_name"`
	Venue        string `db:"venue" json:"venue"`
	Neighborhood string `db:"neighborhood" json:"neighborhood"`
	Borough      string `db:"borough" json:"borough"`
	DayOfWeek    string `db:"day_of_week" json:"day_of_week"`
}

// Plan statuses.
const (
	PlanGoing     = "going"
	PlanCancelled = "cancelled"
)

// Plan marks a mic as going or cancelled on a specific date.
type Plan struct {
	ID        int64     `db:"id" json:"id"`
	MicID     int64     `db:"mic_id" json:"mic_id"`
	PlanDate  string    `db:"plan_date" json:"plan_date"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlanWithMic joins a plan with its mic's display fields.
type PlanWithMic struct {
	Plan
	MicName   string `db:"mic_name" json:"mic_name"`
	Venue     string `db:"venue" json:"venue"`
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
}

// ScrapeAttempt is one row of the append-only scrape audit trail.
type ScrapeAttempt struct {
	ID        int64     `db:"id" json:"id"`
	Source    string    `db:"source" json:"source"`
	ScrapedAt time.Time `db:"scraped_at" json:"scraped_at"`
	Status    string    `db:"status" json:"status"`
	Notes     string    `db:"notes" json:"notes"`
}

// Store is the persistence interface.
type Store interface {
	AddMic(ctx context.Context, mic *scraper.Mic) error
	GetMic(ctx context.Context, id int64) (*scraper.Mic, error)
	ListActiveMics(ctx context.Context) ([]scraper.Mic, error)
	MicsByDay(ctx context.Context, day string) ([]scraper.Mic, error)
	UpdateMic(ctx context.Context, id int64, fields map[string]any) error
	SetMicRating(ctx context.Context, id int64, rating float64) error
	DeactivateMic(ctx context.Context, id int64) error

	AddSet(ctx context.Context, entry *SetEntry) error
	UpdateSet(ctx context.Context, id int64, fields map[string]any) error
	ListSets(ctx context.Context) ([]SetWithMic, error)
	SetsForMic(ctx context.Context, micID int64) ([]SetEntry, error)
	SetCountForMic(ctx context.Context, micID int64) (int, error)
	HasSetOn(ctx context.Context, micID int64, date string) (bool, error)

	SetPlan(ctx context.Context, micID int64, date, status string) error
	RemovePlan(ctx context.Context, micID int64, date string) error
	PlansForRange(ctx context.Context, start, end string) ([]PlanWithMic, error)
	GoingMicIDs(ctx context.Context, start, end string) (map[int64]bool, error)

	MicsMissingCoordinates(ctx context.Context) ([]scraper.Mic, error)
	SetCoordinates(ctx context.Context, id int64, lat, lng float64) error
	MicsWithCoordinates(ctx context.Context) ([]scraper.Mic, error)

	LogScrape(ctx context.Context, source, status, notes string) error
	ScrapeHistory(ctx context.Context) ([]ScrapeAttempt, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddMic inserts a mic. The storage always assigns the id: any
// caller-set id is ignored, and the transient Source field is never
// persisted.
func (s *SQLiteStore) AddMic(ctx context.Context, mic *scraper.Mic) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mics (name, venue, address, neighborhood, borough, day_of_week,
			start_time, display_time, end_time, cost, set_length_min, signup_method,
			signup_url, signup_notes, venue_url, instagram, mic_rating, notes,
			latitude, longitude, is_biweekly, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, mic.Name, mic.Venue, mic.Address, mic.Neighborhood, mic.Borough, mic.DayOfWeek,
		mic.StartTime, mic.DisplayTime, mic.EndTime, mic.Cost, mic.SetLengthMin,
		mic.SignupMethod, mic.SignupURL, mic.SignupNotes, mic.VenueURL, mic.Instagram,
		mic.MicRating, mic.Notes, mic.Latitude, mic.Longitude, mic.IsBiweekly, now, now)
	if err != nil {
		return fmt.Errorf("add mic %q: %w", mic.Name, err)
	}
	mic.ID, _ = res.LastInsertId()
	mic.IsActive = true
	mic.CreatedAt = now
	mic.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetMic(ctx context.Context, id int64) (*scraper.Mic, error) {
	var mic scraper.Mic
	if err := s.db.GetContext(ctx, &mic, "SELECT * FROM mics WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get mic %d: %w", id, err)
	}
	return &mic, nil
}

func (s *SQLiteStore) ListActiveMics(ctx context.Context) ([]scraper.Mic, error) {
	mics, err := s.selectMics(ctx, "SELECT * FROM mics WHERE is_active = 1")
	if err != nil {
		return nil, fmt.Errorf("list active mics: %w", err)
	}
	return mics, nil
}

func (s *SQLiteStore) MicsByDay(ctx context.Context, day string) ([]scraper.Mic, error) {
	var mics []scraper.Mic
	err := s.db.SelectContext(ctx, &mics,
		"SELECT * FROM mics WHERE is_active = 1 AND day_of_week = ? ORDER BY start_time", day)
	if err != nil {
		return nil, fmt.Errorf("mics by day %s: %w", day, err)
	}
	return mics, nil
}

// selectMics runs a mic query and applies the canonical weekday then
// start-time ordering. SQLite would sort day_of_week alphabetically,
// so the weekday leg is done here.
func (s *SQLiteStore) selectMics(ctx context.Context, query string, args ...any) ([]scraper.Mic, error) {
	var mics []scraper.Mic
	if err := s.db.SelectContext(ctx, &mics, query, args...); err != nil {
		return nil, err
	}
	sort.SliceStable(mics, func(i, j int) bool {
		di, dj := dayIndex(mics[i].DayOfWeek), dayIndex(mics[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		return mics[i].StartTime < mics[j].StartTime
	})
	return mics, nil
}

var dayOrder = map[string]int{
	"Monday": 0, "Tuesday": 1, "Wednesday": 2, "Thursday": 3,
	"Friday": 4, "Saturday": 5, "Sunday": 6,
}

func dayIndex(day string) int {
	if i, ok := dayOrder[day]; ok {
		return i
	}
	return len(dayOrder)
}

// micColumns are the columns UpdateMic accepts.
var micColumns = map[string]bool{
	"name": true, "venue": true, "address": true, "neighborhood": true,
	"borough": true, "day_of_week": true, "start_time": true,
	"display_time": true, "end_time": true, "cost": true,
	"set_length_min": true, "signup_method": true, "signup_url": true,
	"signup_notes": true, "venue_url": true, "instagram": true,
	"mic_rating": true, "notes": true, "is_biweekly": true,
}

// UpdateMic applies a partial update. Unknown field names are
// rejected so callers can't write id, is_active or the timestamps
// through this path.
func (s *SQLiteStore) UpdateMic(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !micColumns[col] {
			return fmt.Errorf("update mic %d: unknown column %q", id, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var clause strings.Builder
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		if i > 0 {
			clause.WriteString(", ")
		}
		clause.WriteString(col + " = ?")
		args = append(args, fields[col])
	}
	args = append(args, time.Now().UTC(), id)

	_, err := s.db.ExecContext(ctx,
		"UPDATE mics SET "+clause.String()+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update mic %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SetMicRating(ctx context.Context, id int64, rating float64) error {
	return s.UpdateMic(ctx, id, map[string]any{"mic_rating": rating})
}

// DeactivateMic soft-deletes a mic and clears its plans. The row
// itself stays so set history keeps resolving; mics are never hard
// deleted.
func (s *SQLiteStore) DeactivateMic(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mics SET is_active = 0, updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate mic %d: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM plans WHERE mic_id = ?", id); err != nil {
		return fmt.Errorf("clear plans for mic %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddSet(ctx context.Context, entry *SetEntry) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sets (mic_id, date_performed, set_rating, crowd_rating, crowd_size,
			set_list, recording_url, notes, new_material, got_feedback, feedback_notes,
			would_return, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.MicID, entry.DatePerformed, entry.SetRating, entry.CrowdRating,
		entry.CrowdSize, entry.SetList, entry.RecordingURL, entry.Notes,
		entry.NewMaterial, entry.GotFeedback, entry.FeedbackNotes,
		entry.WouldReturn, entry.Tags, now)
	if err != nil {
		return fmt.Errorf("add set for mic %d: %w", entry.MicID, err)
	}
	entry.ID, _ = res.LastInsertId()
	entry.CreatedAt = now
	return nil
}

// setColumns are the columns UpdateSet accepts.
var setColumns = map[string]bool{
	"date_performed": true, "set_rating": true, "crowd_rating": true,
	"crowd_size": true, "set_list": true, "recording_url": true,
	"notes": true, "new_material": true, "got_feedback": true,
	"feedback_notes": true, "would_return": true, "tags": true,
}

// UpdateSet fills in fields on an existing entry, typically a skeletal
// one created by the going button.
func (s *SQLiteStore) UpdateSet(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !setColumns[col] {
			return fmt.Errorf("update set %d: unknown column %q", id, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var clause strings.Builder
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		if i > 0 {
			clause.WriteString(", ")
		}
		clause.WriteString(col + " = ?")
		args = append(args, fields[col])
	}
	args = append(args, id)

	_, err := s.db.ExecContext(ctx,
		"UPDATE sets SET "+clause.String()+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update set %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListSets(ctx context.Context) ([]SetWithMic, error) {
	var sets []SetWithMic
	err := s.db.SelectContext(ctx, &sets, `
		SELECT s.*, m.name AS mic_name, m.venue, m.neighborhood, m.borough, m.day_of_week
		FROM sets s
		LEFT JOIN mics m ON s.mic_id = m.id
		ORDER BY s.date_performed DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	return sets, nil
}

func (s *SQLiteStore) SetsForMic(ctx context.Context, micID int64) ([]SetEntry, error) {
	var sets []SetEntry
	err := s.db.SelectContext(ctx, &sets,
		"SELECT * FROM sets WHERE mic_id = ? ORDER BY date_performed DESC", micID)
	if err != nil {
		return nil, fmt.Errorf("sets for mic %d: %w", micID, err)
	}
	return sets, nil
}

func (s *SQLiteStore) SetCountForMic(ctx context.Context, micID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sets WHERE mic_id = ?", micID)
	if err != nil {
		return 0, fmt.Errorf("set count for mic %d: %w", micID, err)
	}
	return count, nil
}

func (s *SQLiteStore) HasSetOn(ctx context.Context, micID int64, date string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sets WHERE mic_id = ? AND date_performed = ?", micID, date)
	if err != nil {
		return false, fmt.Errorf("set lookup for mic %d on %s: %w", micID, date, err)
	}
	return count > 0, nil
}

// SetPlan creates or updates the plan for a mic on a date. Clicking
// going then cancelled on the same date just flips the existing row.
func (s *SQLiteStore) SetPlan(ctx context.Context, micID int64, date, status string) error {
	if status != PlanGoing && status != PlanCancelled {
		return fmt.Errorf("set plan for mic %d: invalid status %q", micID, status)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (mic_id, plan_date, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(mic_id, plan_date) DO UPDATE SET
			status = excluded.status,
			created_at = excluded.created_at
	`, micID, date, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set plan for mic %d on %s: %w", micID, date, err)
	}
	return nil
}

func (s *SQLiteStore) RemovePlan(ctx context.Context, micID int64, date string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM plans WHERE mic_id = ? AND plan_date = ?", micID, date)
	if err != nil {
		return fmt.Errorf("remove plan for mic %d on %s: %w", micID, date, err)
	}
	return nil
}

func (s *SQLiteStore) PlansForRange(ctx context.Context, start, end string) ([]PlanWithMic, error) {
	var plans []PlanWithMic
	err := s.db.SelectContext(ctx, &plans, `
		SELECT p.*, m.name AS mic_name, m.venue, m.day_of_week
		FROM plans p
		JOIN mics m ON p.mic_id = m.id
		WHERE p.plan_date BETWEEN ? AND ?
		ORDER BY p.plan_date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("plans %s..%s: %w", start, end, err)
	}
	return plans, nil
}

func (s *SQLiteStore) GoingMicIDs(ctx context.Context, start, end string) (map[int64]bool, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT mic_id FROM plans
		WHERE plan_date BETWEEN ? AND ? AND status = 'going'
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("going mics %s..%s: %w", start, end, err)
	}
	going := make(map[int64]bool, len(ids))
	for _, id := range ids {
		going[id] = true
	}
	return going, nil
}

func (s *SQLiteStore) MicsMissingCoordinates(ctx context.Context) ([]scraper.Mic, error) {
	mics, err := s.selectMics(ctx, `
		SELECT * FROM mics
		WHERE is_active = 1 AND (latitude IS NULL OR longitude IS NULL) AND address != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("mics missing coordinates: %w", err)
	}
	return mics, nil
}

func (s *SQLiteStore) SetCoordinates(ctx context.Context, id int64, lat, lng float64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mics SET latitude = ?, longitude = ?, updated_at = ? WHERE id = ?",
		lat, lng, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set coordinates for mic %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) MicsWithCoordinates(ctx context.Context) ([]scraper.Mic, error) {
	mics, err := s.selectMics(ctx, `
		SELECT * FROM mics
		WHERE is_active = 1 AND latitude IS NOT NULL AND longitude IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("mics with coordinates: %w", err)
	}
	return mics, nil
}

func (s *SQLiteStore) LogScrape(ctx context.Context, source, status, notes string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO scrape_log (source, scraped_at, status, notes) VALUES (?, ?, ?, ?)",
		source, time.Now().UTC(), status, notes)
	if err != nil {
		return fmt.Errorf("log scrape %s: %w", source, err)
	}
	return nil
}

func (s *SQLiteStore) ScrapeHistory(ctx context.Context) ([]ScrapeAttempt, error) {
	var attempts []ScrapeAttempt
	err := s.db.SelectContext(ctx, &attempts,
		"SELECT * FROM scrape_log ORDER BY scraped_at DESC")
	if err != nil {
		return nil, fmt.Errorf("scrape history: %w", err)
	}
	return attempts, nil
}
