package seeder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/attribution"
	"linkpulse/internal/events"
	"linkpulse/internal/links"
	"linkpulse/internal/profiles"
)

// Seeder populates the database with demo links, a profile, staged events and
// a realistic click history, then runs the association workflow so the seeded
// data arrives fully partitioned.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	Days      int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, days int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if days <= 0 {
		days = 90
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
		Days:      days,
	}
}

var seedLinks = []links.Link{
	{Slug: "3xK9zQ", Name: "Spring launch blog post", TargetURL: "https://example.com/blog/spring-launch"},
	{Slug: "mP7wT2", Name: "Product page", TargetURL: "https://example.com/product"},
	{Slug: "qA1dF8", Name: "Newsletter signup", TargetURL: "https://example.com/newsletter"},
}

var seedCountries = []string{"US", "DE", "GB", "FR", "BR", "IN"}

var seedReferrerHosts = []string{
	"www.google.com",
	"twitter.com",
	"news.ycombinator.com",
	"www.reddit.com",
	"mail.google.com",
	"",
}

// Run seeds everything: links, daily stats, a profile, and three staged
// events whose associations are computed through the regular workflow.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding demo data...", slog.Int("days", s.Days))

	db := s.DBManager.GetConnection()

	created := make([]links.Link, 0, len(seedLinks))
	for _, link := range seedLinks {
		existing, err := links.GetLinkBySlug(db, link.Slug)
		if err == nil {
			created = append(created, *existing)
			continue
		}
		l := link
		if err := links.CreateLink(db, &l); err != nil {
			return fmt.Errorf("failed to seed link %s: %w", link.Slug, err)
		}
		created = append(created, l)
	}

	for _, link := range created {
		if err := s.seedDailyStats(link.ID); err != nil {
			return fmt.Errorf("failed to seed stats for %s: %w", link.Slug, err)
		}
	}

	profile := &profiles.Profile{Name: "Demo campaign"}
	if err := profiles.CreateProfile(db, profile); err != nil {
		return fmt.Errorf("failed to seed profile: %w", err)
	}
	linkIDs := make([]uint, len(created))
	for i, link := range created {
		linkIDs[i] = link.ID
		if err := profiles.AddLink(db, profile.ID, link.ID); err != nil {
			return fmt.Errorf("failed to attach link %d to profile: %w", link.ID, err)
		}
	}

	service := attribution.NewService(s.DBManager, s.Logger)
	today := links.DayOf(time.Now().UTC())
	anchors := []time.Time{
		today.AddDate(0, 0, -s.Days+7),
		today.AddDate(0, 0, -s.Days/2),
		today.AddDate(0, 0, -7),
	}
	for i, anchor := range anchors {
		event := &events.Event{
			Name:       fmt.Sprintf("Demo event %d", i+1),
			AnchorDate: anchor,
			ProfileID:  &profile.ID,
		}
		if err := events.CreateEvent(db, event); err != nil {
			return fmt.Errorf("failed to seed event %d: %w", i+1, err)
		}
		result := service.BulkAssociate(ctx, linkIDs, event.ID)
		if err := result.Err(); err != nil {
			return fmt.Errorf("failed to associate seeded event %d: %w", event.ID, err)
		}
	}

	s.Logger.Info("Seeding completed",
		slog.Int("links", len(created)),
		slog.Int("events", len(anchors)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedDailyStats writes a click history for one link, trending upward with
// random day-to-day noise.
func (s *Seeder) seedDailyStats(linkID uint) error {
	today := links.DayOf(time.Now().UTC())
	samples := make([]links.DailySample, 0, s.Days)

	for i := s.Days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		base := int64(10 + (s.Days-i)/3)
		clicks := base + rand.Int64N(base)

		countries := make(map[string]int64)
		referrers := make(map[string]int64)
		remaining := clicks
		for _, code := range seedCountries {
			if remaining <= 0 {
				break
			}
			n := rand.Int64N(remaining + 1)
			if n > 0 {
				countries[code] += n
				remaining -= n
			}
		}
		remaining = clicks
		for _, host := range seedReferrerHosts {
			if remaining <= 0 {
				break
			}
			n := rand.Int64N(remaining + 1)
			if n > 0 {
				referrers[host] += n
				remaining -= n
			}
		}

		samples = append(samples, links.DailySample{
			Date:      day,
			Clicks:    clicks,
			Countries: countries,
			Referrers: referrers,
		})
	}

	return links.UpsertDailyStats(s.Logger, s.DBManager.GetConnection(), linkID, samples)
}
