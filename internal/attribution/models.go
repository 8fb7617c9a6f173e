// Package attribution implements the shared-link temporal attribution engine:
// it keeps each link's click history partitioned into contiguous,
// non-overlapping date ranges across the events that reuse that link, and
// caches deterministic per-range click metrics on the association rows.
package attribution

import (
	"time"

	"linkpulse/internal/models"
)

// Association is the junction row between a link and an event. It carries the
// attributed half-open date range [RangeStart, RangeEnd) and cached metrics
// for that slice of the link's time series. Nil range bounds are the
// unbounded-past / unbounded-future sentinels.
type Association struct {
	ID             uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	PublicID       string      `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	LinkID         uint        `gorm:"uniqueIndex:idx_assoc_link_event;index;not null" json:"link_id"`
	EventID        uint        `gorm:"uniqueIndex:idx_assoc_link_event;index;not null" json:"event_id"`
	RangeStart     *time.Time  `gorm:"type:datetime" json:"range_start"`
	RangeEnd       *time.Time  `gorm:"type:datetime" json:"range_end"`
	TotalClicks    int64       `gorm:"not null;default:0" json:"total_clicks"`
	TopCountries   models.JSON `gorm:"type:text" json:"top_countries"`
	TopReferrers   models.JSON `gorm:"type:text" json:"top_referrers"`
	AutoCalculated bool        `gorm:"not null;default:true" json:"auto_calculated"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Association) TableName() string {
	return "link_associations"
}

// BreakdownEntry is one row of a top-N breakdown
type BreakdownEntry struct {
	Key    string `json:"key"`
	Clicks int64  `json:"clicks"`
}

// RangeMetrics is the aggregated result for one association's date range
type RangeMetrics struct {
	TotalClicks  int64
	TopCountries []BreakdownEntry
	TopReferrers []BreakdownEntry
}

// AnchoredEvent is the partitioner's input: an event and the date it is
// centered on.
type AnchoredEvent struct {
	EventID    uint
	AnchorDate time.Time
}

// AttributionRange is one slice of a link's timeline assigned to an event.
// Nil Start means unbounded past, nil End unbounded future.
type AttributionRange struct {
	EventID uint
	Start   *time.Time
	End     *time.Time
}

// Contains reports whether a date falls inside the half-open range.
func (r AttributionRange) Contains(date time.Time) bool {
	if r.Start != nil && date.Before(*r.Start) {
		return false
	}
	if r.End != nil && !date.Before(*r.End) {
		return false
	}
	return true
}
