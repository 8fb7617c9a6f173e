package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"linkpulse/internal/config"
	"linkpulse/internal/events"
	"linkpulse/internal/links"
	"linkpulse/internal/metrics"
	"linkpulse/internal/models"
)

// Recalculator is the only component that mutates association ranges and
// cached metrics. All recomputation for a link runs under that link's
// exclusive lock and lands in one atomic write; a failed recalculation leaves
// the previously persisted partition untouched.
type Recalculator struct {
	dbManager   cartridge.DBManager
	logger      *slog.Logger
	locks       *linkLocks
	lockTimeout time.Duration
	topN        int
	metrics     *metrics.Metrics

	// now is swappable in tests so every row of one write shares a
	// predictable logical timestamp
	now func() time.Time
}

// NewRecalculator creates a recalculator using the configured lock timeout
// and breakdown size.
func NewRecalculator(dbManager cartridge.DBManager, logger *slog.Logger) *Recalculator {
	cfg := config.GetConfig()
	return &Recalculator{
		dbManager:   dbManager,
		logger:      logger,
		locks:       sharedLocks,
		lockTimeout: time.Duration(cfg.LockTimeoutSeconds) * time.Second,
		topN:        cfg.TopBreakdownSize,
		metrics:     metrics.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RecalculateForLink recomputes the full partition and cached metrics for
// every association of one link. The association set is reloaded under the
// link's lock, repartitioned from scratch, re-aggregated against a single
// snapshot of the time series, and persisted in one transaction with a shared
// logical timestamp.
func (r *Recalculator) RecalculateForLink(ctx context.Context, linkID uint) error {
	_, err := r.run(ctx, linkID, nil)
	return err
}

// AssociateAndRecalculate inserts a new (link, event) association and
// recomputes the link's partition in the same locked transaction, so the row
// is never visible without its attributed range and metrics. It reports
// whether a row was inserted; false means the pair already existed.
func (r *Recalculator) AssociateAndRecalculate(ctx context.Context, linkID, eventID uint) (bool, error) {
	pending := &Association{
		PublicID:       uuid.NewString(),
		LinkID:         linkID,
		EventID:        eventID,
		AutoCalculated: true,
	}
	return r.run(ctx, linkID, pending)
}

func (r *Recalculator) run(ctx context.Context, linkID uint, pending *Association) (bool, error) {
	start := time.Now()
	created, err := r.recalculate(ctx, linkID, pending)
	r.metrics.RecalculationDuration.Observe(time.Since(start).Seconds())
	r.metrics.Recalculations.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		r.logger.Error("Recalculation failed",
			slog.Uint64("linkID", uint64(linkID)),
			slog.Any("error", err))
	}
	return created, err
}

func (r *Recalculator) recalculate(ctx context.Context, linkID uint, pending *Association) (bool, error) {
	lockStart := time.Now()
	release, err := r.locks.Acquire(ctx, linkID, r.lockTimeout)
	r.metrics.LockWaitDuration.Observe(time.Since(lockStart).Seconds())
	if err != nil {
		return false, err
	}
	defer release()

	db := r.dbManager.GetConnection()

	assocs, err := GetAssociationsForLink(db, linkID)
	if err != nil {
		return false, err
	}
	if pending != nil {
		// A concurrent Associate may have landed the pair while we waited
		// for the lock; the existing row is already partitioned.
		for _, assoc := range assocs {
			if assoc.EventID == pending.EventID {
				pending = nil
				break
			}
		}
	}
	if pending != nil {
		assocs = append(assocs, *pending)
	}
	if len(assocs) == 0 {
		r.logger.Debug("No associations to recalculate", slog.Uint64("linkID", uint64(linkID)))
		return false, nil
	}

	anchors, err := r.loadAnchors(db, assocs)
	if err != nil {
		return false, err
	}

	series, err := links.GetTimeSeries(db, linkID)
	if err != nil {
		if _, notFound := err.(*links.LinkNotFoundError); notFound {
			return false, err
		}
		return false, &SourceUnavailableError{LinkID: linkID, Err: err}
	}

	ranges := PartitionRanges(anchors)
	updates := make(map[uint]rangeUpdate, len(ranges)) // eventID -> computed row
	for _, rng := range ranges {
		m := AggregateRange(series, rng, r.topN)
		countriesJSON, err := encodeBreakdown(m.TopCountries)
		if err != nil {
			return false, err
		}
		referrersJSON, err := encodeBreakdown(m.TopReferrers)
		if err != nil {
			return false, err
		}
		updates[rng.EventID] = rangeUpdate{
			rng:          rng,
			totalClicks:  m.TotalClicks,
			topCountries: countriesJSON,
			topReferrers: referrersJSON,
		}
	}

	logicalNow := r.now()
	err = models.PerformWrite(r.logger, db, func(tx *gorm.DB) error {
		for _, assoc := range assocs {
			upd, ok := updates[assoc.EventID]
			if !ok {
				return fmt.Errorf("partitioner produced no range for event %d on link %d", assoc.EventID, linkID)
			}
			if assoc.ID == 0 {
				// the pending association enters the table already partitioned
				row := assoc
				row.RangeStart = upd.rng.Start
				row.RangeEnd = upd.rng.End
				row.TotalClicks = upd.totalClicks
				row.TopCountries = upd.topCountries
				row.TopReferrers = upd.topReferrers
				row.CreatedAt = logicalNow
				row.UpdatedAt = logicalNow
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			res := tx.Model(&Association{}).
				Where("id = ?", assoc.ID).
				Updates(map[string]interface{}{
					"range_start":   upd.rng.Start,
					"range_end":     upd.rng.End,
					"total_clicks":  upd.totalClicks,
					"top_countries": upd.topCountries,
					"top_referrers": upd.topReferrers,
					"updated_at":    logicalNow,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("association %d disappeared during recalculation", assoc.ID)
			}
		}
		return nil
	})
	if err != nil {
		return false, &PersistenceError{LinkID: linkID, Err: err}
	}

	r.logger.Info("Recalculated link partition",
		slog.Uint64("linkID", uint64(linkID)),
		slog.Int("associations", len(assocs)),
		slog.Int("seriesDays", len(series)))
	return pending != nil, nil
}

type rangeUpdate struct {
	rng          AttributionRange
	totalClicks  int64
	topCountries models.JSON
	topReferrers models.JSON
}

// loadAnchors resolves each association's event anchor date. An association
// pointing at a vanished event means a broken cascade; surface it rather than
// partition around it.
func (r *Recalculator) loadAnchors(db *gorm.DB, assocs []Association) ([]AnchoredEvent, error) {
	ids := make([]uint, len(assocs))
	for i, assoc := range assocs {
		ids[i] = assoc.EventID
	}

	byID, err := events.GetEventsByIDs(db, ids)
	if err != nil {
		return nil, err
	}

	anchors := make([]AnchoredEvent, 0, len(assocs))
	for _, assoc := range assocs {
		event, ok := byID[assoc.EventID]
		if !ok {
			return nil, &events.EventNotFoundError{EventID: assoc.EventID}
		}
		anchors = append(anchors, AnchoredEvent{EventID: event.ID, AnchorDate: event.AnchorDate})
	}
	return anchors, nil
}

func encodeBreakdown(entries []BreakdownEntry) (models.JSON, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode breakdown: %w", err)
	}
	return models.JSON(data), nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case IsSourceUnavailable(err):
		return metrics.ResultSourceUnavailable
	case IsLockTimeout(err):
		return metrics.ResultLockTimeout
	default:
		if _, ok := err.(*PersistenceError); ok {
			return metrics.ResultPersistenceFailure
		}
		return metrics.ResultError
	}
}
