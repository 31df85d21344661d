package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"mictrack/internal/config"
	"mictrack/internal/runner"
	"mictrack/internal/store"
	"mictrack/pkg/geocode"
	"mictrack/pkg/notify"
	"mictrack/pkg/scraper"
	"mictrack/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildScrapers(cfg *config.Config) []scraper.Scraper {
	var scrapers []scraper.Scraper

	if cfg.Sources.Badslava.Enabled {
		scrapers = append(scrapers, scraper.NewBadslava())
	}
	if cfg.Sources.Eastville.Enabled {
		scrapers = append(scrapers, scraper.NewEastville())
	}
	if cfg.Sources.Firemics.Enabled {
		scrapers = append(scrapers, scraper.NewFiremics())
	}
	if cfg.Sources.ComedyListings.Enabled {
		scrapers = append(scrapers, scraper.NewComedyListings())
	}

	return scrapers
}

func buildMatchOptions(cfg *config.Config) map[scraper.SourceName]scraper.MatchOptions {
	opts := make(map[scraper.SourceName]scraper.MatchOptions)
	overrides := map[scraper.SourceName]config.MatchConfig{
		scraper.SourceBadslava:       cfg.Sources.Badslava.Match,
		scraper.SourceEastville:      cfg.Sources.Eastville.Match,
		scraper.SourceFiremics:       cfg.Sources.Firemics.Match,
		scraper.SourceComedyListings: cfg.Sources.ComedyListings.Match,
	}
	for name, m := range overrides {
		if m.IsZero() {
			continue
		}
		opts[name] = scraper.MatchOptions{
			MinVenueTokens:   m.VenueTokens,
			MinNameTokens:    m.NameTokens,
			AddressPrefixLen: m.AddressPrefixLen,
		}
	}
	return opts
}

func buildNotifier(cfg *config.Config) *notify.Manager {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlack(cfg.Notify.Slack.WebhookURL))
	}
	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Secret))
	}

	return notify.NewManager(notifiers)
}

func buildRunner(cfg *config.Config, db store.Store, filterSources []string) (*runner.Runner, error) {
	allScrapers := buildScrapers(cfg)

	// Filter to requested sources only.
	scrapers := allScrapers
	if len(filterSources) > 0 {
		wanted := make(map[string]bool)
		for _, s := range filterSources {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		scrapers = nil
		for _, sc := range allScrapers {
			if wanted[string(sc.Name())] {
				scrapers = append(scrapers, sc)
			}
		}
		if len(scrapers) == 0 {
			return nil, fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
	}

	return runner.New(db, scrapers, buildMatchOptions(cfg), buildNotifier(cfg)), nil
}

func runScrape(filterSources []string, apply bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	r, err := buildRunner(cfg, db, filterSources)
	if err != nil {
		return err
	}

	reports, err := r.Run(context.Background(), apply)
	if err != nil {
		return err
	}

	totalNew := 0
	for _, rep := range reports {
		fmt.Fprintf(os.Stderr, "%s: %d scraped, %d matched, %d new\n",
			rep.Source, rep.Scraped, rep.Matched, len(rep.New))
		for _, e := range rep.Errors {
			fmt.Fprintf(os.Stderr, "  error: %s\n", e)
		}
		for _, m := range rep.New {
			fmt.Fprintf(os.Stderr, "  + %s @ %s (%s %s)\n", m.Name, m.Venue, m.DayOfWeek, m.DisplayTime)
		}
		for _, c := range rep.Changed {
			for field, vals := range c.Fields {
				fmt.Fprintf(os.Stderr, "  ~ %s: %s %q -> %q\n", c.Name, field, vals[0], vals[1])
			}
		}
		totalNew += len(rep.New)
	}

	if apply {
		fmt.Fprintf(os.Stderr, "\ninserted %d new mics\n", totalNew)
	} else if totalNew > 0 {
		fmt.Fprintf(os.Stderr, "\n%d new mics found (run with --apply to insert)\n", totalNew)
	}
	return nil
}

func runMics(day string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	var mics []scraper.Mic
	if day != "" {
		day = strings.ToUpper(day[:1]) + strings.ToLower(day[1:])
		if !scraper.ValidDays[day] {
			return fmt.Errorf("invalid day: %s", day)
		}
		mics, err = db.MicsByDay(ctx, day)
	} else {
		mics, err = db.ListActiveMics(ctx)
	}
	if err != nil {
		return fmt.Errorf("list mics: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mics)
	}

	if len(mics) == 0 {
		fmt.Println("no mics found (try scraping first: mictrack scrape --apply)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDAY\tTIME\tNAME\tVENUE\tHOOD\tCOST")
	for _, m := range mics {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.DayOfWeek, m.DisplayTime, m.Name, m.Venue, m.Neighborhood, m.Cost)
	}
	return w.Flush()
}

func runRate(micID int64, rating float64) error {
	if rating < 0 || rating > 10 {
		return fmt.Errorf("rating must be between 0 and 10")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	mic, err := db.GetMic(ctx, micID)
	if err != nil {
		return fmt.Errorf("look up mic %d: %w", micID, err)
	}
	if err := db.SetMicRating(ctx, micID, rating); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s rated %.1f\n", mic.Name, rating)
	return nil
}

func runRemove(micID int64) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	mic, err := db.GetMic(ctx, micID)
	if err != nil {
		return fmt.Errorf("look up mic %d: %w", micID, err)
	}
	if err := db.DeactivateMic(ctx, micID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "deactivated %s (sets are kept, plans cleared)\n", mic.Name)
	return nil
}

func runSetsLog(micID int64, date string, setRating, crowdRating int, notes, setList string, newMaterial bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	mic, err := db.GetMic(ctx, micID)
	if err != nil {
		return fmt.Errorf("look up mic %d: %w", micID, err)
	}

	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}

	entry := &store.SetEntry{
		MicID:         micID,
		DatePerformed: date,
		SetRating:     setRating,
		CrowdRating:   crowdRating,
		Notes:         notes,
		SetList:       setList,
		NewMaterial:   newMaterial,
	}
	if err := db.AddSet(ctx, entry); err != nil {
		return fmt.Errorf("log set: %w", err)
	}

	count, err := db.SetCountForMic(ctx, micID)
	if err != nil {
		return fmt.Errorf("count sets: %w", err)
	}
	fmt.Fprintf(os.Stderr, "logged set #%d at %s (%s) - %d total\n", entry.ID, mic.Name, date, count)
	return nil
}

func runSetsList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sets, err := db.ListSets(context.Background())
	if err != nil {
		return fmt.Errorf("list sets: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sets)
	}

	if len(sets) == 0 {
		fmt.Println("no sets logged yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMIC\tVENUE\tRATING\tCROWD\tNOTES")
	for _, s := range sets {
		rating := "-"
		if s.SetRating > 0 {
			rating = fmt.Sprintf("%d", s.SetRating)
		}
		crowd := "-"
		if s.CrowdRating > 0 {
			crowd = fmt.Sprintf("%d", s.CrowdRating)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.DatePerformed, s.MicName, s.Venue, rating, crowd, s.Notes)
	}
	return w.Flush()
}

func runPlanSet(micID int64, date, status string) error {
	if status != store.PlanGoing && status != store.PlanCancelled {
		return fmt.Errorf("invalid status %q (want going or cancelled)", status)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	mic, err := db.GetMic(ctx, micID)
	if err != nil {
		return fmt.Errorf("look up mic %d: %w", micID, err)
	}

	if err := db.SetPlan(ctx, micID, date, status); err != nil {
		return err
	}

	// Going starts the set record; details get filled in after the mic.
	if status == store.PlanGoing {
		has, err := db.HasSetOn(ctx, micID, date)
		if err != nil {
			return fmt.Errorf("check existing set: %w", err)
		}
		if !has {
			entry := &store.SetEntry{MicID: micID, DatePerformed: date}
			if err := db.AddSet(ctx, entry); err != nil {
				return fmt.Errorf("create set entry: %w", err)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "%s: %s on %s\n", mic.Name, status, date)
	return nil
}

func runPlanClear(micID int64, date string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.RemovePlan(context.Background(), micID, date); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "cleared plan for mic %d on %s\n", micID, date)
	return nil
}

func runPlanList(weekOf string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	anchor := time.Now()
	if weekOf != "" {
		anchor, err = time.Parse("2006-01-02", weekOf)
		if err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", weekOf)
		}
	}

	// Week runs Monday through Sunday.
	offset := (int(anchor.Weekday()) + 6) % 7
	start := anchor.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 6)

	plans, err := db.PlansForRange(context.Background(),
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	if len(plans) == 0 {
		fmt.Printf("no plans for week of %s\n", start.Format("2006-01-02"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSTATUS\tMIC\tVENUE")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.PlanDate, p.Status, p.MicName, p.Venue)
	}
	return w.Flush()
}

func runGeocode() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	mics, err := db.MicsMissingCoordinates(ctx)
	if err != nil {
		return fmt.Errorf("list mics missing coordinates: %w", err)
	}
	if len(mics) == 0 {
		fmt.Fprintln(os.Stderr, "all mics have coordinates")
		return nil
	}

	gc := geocode.New(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent)
	resolved := 0
	for _, m := range mics {
		lat, lng, err := gc.Geocode(ctx, m.Address, m.Borough)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", m.Venue, err)
			continue
		}
		if err := db.SetCoordinates(ctx, m.ID, lat, lng); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", m.Venue, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s: %.5f, %.5f\n", m.Venue, lat, lng)
		resolved++
	}

	fmt.Fprintf(os.Stderr, "geocoded %d of %d mics\n", resolved, len(mics))
	return nil
}

func runHistory() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	attempts, err := db.ScrapeHistory(context.Background())
	if err != nil {
		return fmt.Errorf("scrape history: %w", err)
	}

	if len(attempts) == 0 {
		fmt.Println("no scrapes recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSOURCE\tSTATUS\tNOTES")
	for _, a := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.ScrapedAt.Format(time.RFC3339), a.Source, a.Status, a.Notes)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	r, err := buildRunner(cfg, db, nil)
	if err != nil {
		return err
	}

	srv := server.New(db, r, port)
	return srv.ListenAndServe()
}
