// Package runner orchestrates one on-demand scrape pass: run each
// enabled scraper, record the audit row, match the results against the
// store, optionally insert the new mics, and notify. Shared by the CLI
// and the HTTP API.
package runner

import (
	"context"
	"fmt"
	"strings"

	"mictrack/internal/store"
	"mictrack/pkg/notify"
	"mictrack/pkg/scraper"
)

// SourceReport is the outcome of one scraper within a run. Extractor
// errors live here, never as a Go error: a broken source must not
// block display of the others' results.
type SourceReport struct {
	Source   string           `json:"source"`
	RawCount int              `json:"raw_count"`
	Scraped  int              `json:"scraped"`
	Matched  int              `json:"matched"`
	New      []scraper.Mic    `json:"new"`
	Changed  []scraper.Change `json:"changed"`
	Inserted int              `json:"inserted"`
	Errors   []string         `json:"errors,omitempty"`
}

// Runner runs scrapers against the store.
type Runner struct {
	store    store.Store
	scrapers []scraper.Scraper
	opts     map[scraper.SourceName]scraper.MatchOptions
	notifier *notify.Manager
}

// New creates a runner. opts may be nil to use each source's shipped
// match tuning; notifier may be nil.
func New(s store.Store, scrapers []scraper.Scraper, opts map[scraper.SourceName]scraper.MatchOptions, notifier *notify.Manager) *Runner {
	return &Runner{store: s, scrapers: scrapers, opts: opts, notifier: notifier}
}

// Run executes every scraper sequentially on the calling goroutine.
// When apply is true the new mics of each source are inserted before
// the next source runs, so one run never inserts the same mic twice.
// The returned error covers store reads/writes only.
func (r *Runner) Run(ctx context.Context, apply bool) ([]SourceReport, error) {
	existing, err := r.store.ListActiveMics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing mics: %w", err)
	}

	var reports []SourceReport
	for _, sc := range r.scrapers {
		report, inserted, err := r.runOne(ctx, sc, existing, apply)
		if err != nil {
			return reports, err
		}
		existing = append(existing, inserted...)
		reports = append(reports, report)
	}

	r.notifyNew(ctx, reports)
	return reports, nil
}

func (r *Runner) runOne(ctx context.Context, sc scraper.Scraper, existing []scraper.Mic, apply bool) (SourceReport, []scraper.Mic, error) {
	name := sc.Name()
	report := SourceReport{Source: string(name)}

	result := sc.Scrape(ctx)
	report.RawCount = result.RawCount
	report.Scraped = len(result.Mics)
	report.Errors = result.Errors

	if len(result.Mics) == 0 && len(result.Errors) > 0 {
		// Audit writes are fire-and-forget.
		_ = r.store.LogScrape(ctx, string(name), "error", strings.Join(result.Errors, "; "))
		return report, nil, nil
	}

	opts := r.optionsFor(name)
	diff := scraper.MatchDiff(result.Mics, existing, opts)
	report.Matched = diff.Confirmed + len(diff.Changed)
	report.New = diff.New
	report.Changed = diff.Changed

	var inserted []scraper.Mic
	if apply {
		for i := range diff.New {
			mic := diff.New[i]
			mic.Source = ""
			if err := r.store.AddMic(ctx, &mic); err != nil {
				return report, inserted, fmt.Errorf("insert mic %q: %w", mic.Name, err)
			}
			inserted = append(inserted, mic)
		}
		report.Inserted = len(inserted)
	}

	notes := fmt.Sprintf("%d scraped, %d matched, %d new", report.Scraped, report.Matched, len(report.New))
	if apply {
		notes = fmt.Sprintf("%s, %d added", notes, report.Inserted)
	}
	_ = r.store.LogScrape(ctx, string(name), "success", notes)

	return report, inserted, nil
}

func (r *Runner) optionsFor(name scraper.SourceName) scraper.MatchOptions {
	if opts, ok := r.opts[name]; ok {
		return opts
	}
	return scraper.OptionsFor(name)
}

// notifyNew sends one summary message when a run found mics not in the
// store. Notification failures are reported to nobody but the reports'
// caller via stderr semantics: they never fail the run.
func (r *Runner) notifyNew(ctx context.Context, reports []SourceReport) {
	if r.notifier == nil || !r.notifier.HasNotifiers() {
		return
	}

	var newMics []scraper.Mic
	var sources []string
	for _, rep := range reports {
		if len(rep.New) > 0 {
			newMics = append(newMics, rep.New...)
			sources = append(sources, rep.Source)
		}
	}
	if len(newMics) == 0 {
		return
	}

	_ = r.notifier.Broadcast(ctx, &notify.Notification{
		Title:   fmt.Sprintf("%d new open mics found", len(newMics)),
		Body:    fmt.Sprintf("Sources: %s", strings.Join(sources, ", ")),
		Sources: sources,
		NewMics: newMics,
	})
}
