// Package links owns tracking links and their per-day click time series.
// The time series is written by the external ingestion collaborator through
// UpsertDailyStats and is read-only for the attribution core.
package links

import (
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"gorm.io/gorm"

	"linkpulse/internal/models"
	"linkpulse/internal/pkg/referrers"
)

// LinkNotFoundError represents an error when a tracking link is not found
type LinkNotFoundError struct {
	LinkID uint
	Slug   string
}

func (e *LinkNotFoundError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("link not found for slug: %s", e.Slug)
	}
	return fmt.Sprintf("link not found: %d", e.LinkID)
}

// Link represents an externally tracked short link shared across events
type Link struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug      string    `gorm:"unique;not null" json:"slug"` // Provider short code, e.g. "3xK9zQ"
	Name      string    `gorm:"not null" json:"name"`
	TargetURL string    `gorm:"not null" json:"target_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Link) TableName() string {
	return "links"
}

// LinkDailyStat is one day of click analytics for a link as reported by the
// tracking provider. Country and referrer breakdowns are stored as JSON maps.
type LinkDailyStat struct {
	ID        uint        `gorm:"primaryKey;autoIncrement"`
	LinkID    uint        `gorm:"uniqueIndex:idx_link_day;index;not null"`
	Date      time.Time   `gorm:"uniqueIndex:idx_link_day;type:datetime;not null"` // UTC midnight
	Clicks    int64       `gorm:"not null;default:0"`
	Countries models.JSON `gorm:"type:text"`
	Referrers models.JSON `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (LinkDailyStat) TableName() string {
	return "link_daily_stats"
}

// DayStat is a decoded day of the time series handed to the aggregator.
type DayStat struct {
	Date      time.Time
	Clicks    int64
	Countries map[string]int64
	Referrers map[string]int64
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateLink creates a new tracking link
func CreateLink(db *gorm.DB, link *Link) error {
	if link.Slug == "" {
		return fmt.Errorf("link slug is required")
	}
	if link.Name == "" {
		return fmt.Errorf("link name is required")
	}

	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	return db.Create(link).Error
}

// GetLinkByID retrieves a link by its ID
func GetLinkByID(db *gorm.DB, id uint) (*Link, error) {
	var link Link
	if err := db.First(&link, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &LinkNotFoundError{LinkID: id}
		}
		return nil, fmt.Errorf("unexpected error querying link: %w", err)
	}
	return &link, nil
}

// GetLinkBySlug retrieves a link by its provider slug
func GetLinkBySlug(db *gorm.DB, slug string) (*Link, error) {
	var link Link
	if err := db.Where("slug = ?", slug).First(&link).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &LinkNotFoundError{Slug: slug}
		}
		return nil, fmt.Errorf("unexpected error querying link: %w", err)
	}
	return &link, nil
}

// GetAllLinks retrieves all links ordered by creation time
func GetAllLinks(db *gorm.DB) ([]Link, error) {
	var list []Link
	if err := db.Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// GetTimeSeries loads the full daily time series for a link, ordered by date.
// The single Find query gives the aggregator one consistent snapshot for the
// whole recalculation. Returns LinkNotFoundError if the link does not exist.
func GetTimeSeries(db *gorm.DB, linkID uint) ([]DayStat, error) {
	if _, err := GetLinkByID(db, linkID); err != nil {
		return nil, err
	}

	var rows []LinkDailyStat
	if err := db.Where("link_id = ?", linkID).Order("date ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load time series for link %d: %w", linkID, err)
	}

	series := make([]DayStat, 0, len(rows))
	for _, row := range rows {
		stat := DayStat{Date: row.Date.UTC(), Clicks: row.Clicks}
		if len(row.Countries) > 0 {
			if err := json.Unmarshal(row.Countries, &stat.Countries); err != nil {
				return nil, fmt.Errorf("malformed country breakdown for link %d on %s: %w",
					linkID, row.Date.Format("2006-01-02"), err)
			}
		}
		if len(row.Referrers) > 0 {
			if err := json.Unmarshal(row.Referrers, &stat.Referrers); err != nil {
				return nil, fmt.Errorf("malformed referrer breakdown for link %d on %s: %w",
					linkID, row.Date.Format("2006-01-02"), err)
			}
		}
		series = append(series, stat)
	}
	return series, nil
}

// DailySample is one day of provider analytics before normalization. Referrer
// counts arrive keyed by hostname and are bucketed into referrer kinds here.
type DailySample struct {
	Date      time.Time
	Clicks    int64
	Countries map[string]int64 // ISO 3166-1 alpha-2 code -> clicks
	Referrers map[string]int64 // referrer hostname -> clicks
}

// UpsertDailyStats replaces the stored stats for each sampled day in a single
// write transaction. The provider's numbers are authoritative, so a re-ingested
// day overwrites the previous row rather than adding to it.
func UpsertDailyStats(logger *slog.Logger, db *gorm.DB, linkID uint, samples []DailySample) error {
	if len(samples) == 0 {
		return nil
	}

	return models.PerformWrite(logger, db, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, sample := range samples {
			countriesJSON, err := json.Marshal(sample.Countries)
			if err != nil {
				return fmt.Errorf("failed to encode country breakdown: %w", err)
			}
			referrersJSON, err := json.Marshal(bucketReferrers(sample.Referrers))
			if err != nil {
				return fmt.Errorf("failed to encode referrer breakdown: %w", err)
			}

			day := DayOf(sample.Date)
			err = tx.Exec(`
                INSERT INTO link_daily_stats (link_id, date, clicks, countries, referrers, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(link_id, date) DO UPDATE SET
                    clicks = excluded.clicks,
                    countries = excluded.countries,
                    referrers = excluded.referrers,
                    updated_at = excluded.updated_at
            `, linkID, day, sample.Clicks, string(countriesJSON), string(referrersJSON), now, now).Error
			if err != nil {
				return fmt.Errorf("failed to upsert daily stat for link %d on %s: %w",
					linkID, day.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

// bucketReferrers collapses hostname-keyed counts into referrer kinds
func bucketReferrers(byHost map[string]int64) map[string]int64 {
	bucketed := make(map[string]int64, len(byHost))
	for host, clicks := range byHost {
		bucketed[string(referrers.Classify(host))] += clicks
	}
	return bucketed
}

// LatestStatUpdate returns the most recent updated_at across a link's daily
// stats, used by the refresh job to detect series that moved past their
// cached attribution metrics. The zero time means the link has no stats.
func LatestStatUpdate(db *gorm.DB, linkID uint) (time.Time, error) {
	var result struct {
		LastUpdate *time.Time
	}
	err := db.Model(&LinkDailyStat{}).
		Select("MAX(updated_at) as last_update").
		Where("link_id = ?", linkID).
		Scan(&result).Error
	if err != nil {
		return time.Time{}, err
	}
	if result.LastUpdate == nil {
		return time.Time{}, nil
	}
	return result.LastUpdate.UTC(), nil
}
