package attribution

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"linkpulse/internal/events"
	"linkpulse/internal/links"
	"linkpulse/internal/metrics"
	"linkpulse/internal/models"
	"linkpulse/internal/pkg/async"
)

// Association modes for instrumentation
const (
	modeManual  = "manual"
	modeBulk    = "bulk"
	modeCascade = "cascade"
)

// bulkWorkers caps concurrent per-link recalculations in a bulk association
const bulkWorkers = 4

// Service is the attribution façade consumed by event-lifecycle workflows and
// the admin surface. Associate and Disassociate are idempotent; batch
// operations isolate failures per link.
type Service struct {
	dbManager cartridge.DBManager
	recalc    *Recalculator
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewService creates the attribution service with its own recalculator.
func NewService(dbManager cartridge.DBManager, logger *slog.Logger) *Service {
	return &Service{
		dbManager: dbManager,
		recalc:    NewRecalculator(dbManager, logger),
		logger:    logger,
		metrics:   metrics.Default(),
	}
}

// BatchOutcome is the per-link result of a batch operation
type BatchOutcome struct {
	LinkID      uint
	Association *Association
	Err         error
}

// BatchResult aggregates per-link outcomes of BulkAssociate or
// HandleEventDeletion.
type BatchResult struct {
	Outcomes []BatchOutcome
}

// Succeeded returns how many links were processed without error.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// FailedLinkIDs returns the links that need retrying, in input order.
func (r BatchResult) FailedLinkIDs() []uint {
	var failed []uint
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o.LinkID)
		}
	}
	return failed
}

// Err returns nil when every link succeeded, otherwise a PartialBatchError
// listing the failed links.
func (r BatchResult) Err() error {
	failed := r.FailedLinkIDs()
	if len(failed) == 0 {
		return nil
	}
	return &PartialBatchError{FailedLinkIDs: failed}
}

// Associate pairs a link with an event and recomputes the link's partition.
// The new row and the repartitioned ranges land in one write, so readers
// never see the pair without its range and metrics. Calling it again for an
// existing pair returns the stored association unchanged without touching
// ranges or metrics.
func (s *Service) Associate(ctx context.Context, linkID, eventID uint) (*Association, error) {
	return s.associate(ctx, linkID, eventID, modeManual)
}

func (s *Service) associate(ctx context.Context, linkID, eventID uint, mode string) (*Association, error) {
	db := s.dbManager.GetConnection()

	if _, err := links.GetLinkByID(db, linkID); err != nil {
		return nil, err
	}
	if _, err := events.GetEventByID(db, eventID); err != nil {
		return nil, err
	}

	existing, err := GetAssociation(db, linkID, eventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug("Association already exists",
			slog.Uint64("linkID", uint64(linkID)),
			slog.Uint64("eventID", uint64(eventID)))
		return existing, nil
	}

	created, err := s.recalc.AssociateAndRecalculate(ctx, linkID, eventID)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.AssociationsCreated.WithLabelValues(mode).Inc()
	}

	assoc, err := GetAssociation(db, linkID, eventID)
	if err != nil {
		return nil, err
	}
	if assoc == nil {
		return nil, fmt.Errorf("association for link %d and event %d vanished after recalculation", linkID, eventID)
	}
	return assoc, nil
}

// Disassociate removes the pairing if present and repartitions what remains.
// Removing an absent pairing is a successful no-op.
func (s *Service) Disassociate(ctx context.Context, linkID, eventID uint) error {
	db := s.dbManager.GetConnection()

	existing, err := GetAssociation(db, linkID, eventID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	err = models.PerformWrite(s.logger, db, func(tx *gorm.DB) error {
		return tx.Delete(&Association{}, existing.ID).Error
	})
	if err != nil {
		return &PersistenceError{LinkID: linkID, Err: err}
	}
	s.metrics.AssociationsDeleted.WithLabelValues(modeManual).Inc()

	return s.recalc.RecalculateForLink(ctx, linkID)
}

// BulkAssociate pairs a set of links with one event, e.g. when the event
// inherits its profile's default links. Links are processed independently on
// a small worker pool; one link's failure never blocks the others. Outcomes
// come back in input order.
func (s *Service) BulkAssociate(ctx context.Context, linkIDs []uint, eventID uint) BatchResult {
	if len(linkIDs) == 0 {
		return BatchResult{}
	}

	tasks := make([]async.Task, len(linkIDs))
	for i, linkID := range linkIDs {
		id := linkID
		tasks[i] = async.Task{
			Name: strconv.FormatUint(uint64(id), 10),
			Execute: func() (interface{}, error) {
				return s.associate(ctx, id, eventID, modeBulk)
			},
		}
	}

	pool := async.NewPool(bulkWorkers)
	results := pool.Execute(ctx, tasks)

	outcomes := make([]BatchOutcome, len(linkIDs))
	for i, linkID := range linkIDs {
		outcome := BatchOutcome{LinkID: linkID}
		if res, ok := results[strconv.FormatUint(uint64(linkID), 10)]; ok {
			if res.Err != nil {
				outcome.Err = res.Err
			} else if assoc, ok := res.Data.(*Association); ok {
				outcome.Association = assoc
			}
		} else {
			outcome.Err = ctx.Err()
			if outcome.Err == nil {
				outcome.Err = fmt.Errorf("association of link %d was not executed", linkID)
			}
		}
		outcomes[i] = outcome
	}

	result := BatchResult{Outcomes: outcomes}
	if failed := result.FailedLinkIDs(); len(failed) > 0 {
		s.logger.Warn("Bulk association partially failed",
			slog.Uint64("eventID", uint64(eventID)),
			slog.Int("succeeded", result.Succeeded()),
			slog.Int("failed", len(failed)))
	}
	return result
}

// HandleEventDeletion removes every association of a deleted event and
// repartitions each affected link. The association rows vanish in one atomic
// write; recalculations then run per link so one broken time series cannot
// block the rest.
func (s *Service) HandleEventDeletion(ctx context.Context, eventID uint) BatchResult {
	db := s.dbManager.GetConnection()

	linkIDs, err := LinkIDsForEvent(db, eventID)
	if err != nil {
		return BatchResult{Outcomes: []BatchOutcome{{Err: err}}}
	}
	if len(linkIDs) == 0 {
		return BatchResult{}
	}
	sort.Slice(linkIDs, func(i, j int) bool { return linkIDs[i] < linkIDs[j] })

	var deleted int64
	err = models.PerformWrite(s.logger, db, func(tx *gorm.DB) error {
		res := tx.Where("event_id = ?", eventID).Delete(&Association{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		outcomes := make([]BatchOutcome, len(linkIDs))
		for i, linkID := range linkIDs {
			outcomes[i] = BatchOutcome{LinkID: linkID, Err: &PersistenceError{LinkID: linkID, Err: err}}
		}
		return BatchResult{Outcomes: outcomes}
	}
	s.metrics.AssociationsDeleted.WithLabelValues(modeCascade).Add(float64(deleted))

	outcomes := make([]BatchOutcome, len(linkIDs))
	for i, linkID := range linkIDs {
		outcomes[i] = BatchOutcome{LinkID: linkID, Err: s.recalc.RecalculateForLink(ctx, linkID)}
	}

	result := BatchResult{Outcomes: outcomes}
	s.logger.Info("Cascaded event deletion",
		slog.Uint64("eventID", uint64(eventID)),
		slog.Int64("deletedAssociations", deleted),
		slog.Int("recalculatedLinks", result.Succeeded()),
		slog.Int("failedLinks", len(result.FailedLinkIDs())))
	return result
}

// RecalculateForLink exposes a manual full recalculation of one link's
// partition, used by the admin surface and the refresh job.
func (s *Service) RecalculateForLink(ctx context.Context, linkID uint) error {
	return s.recalc.RecalculateForLink(ctx, linkID)
}
