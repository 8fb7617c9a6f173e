package jobs

import (
	"context"

	"log/slog"

	"linkpulse/internal/attribution"
	"linkpulse/internal/database"
)

// RefreshAttributionJob recalculates links whose ingested time series has
// advanced past the cached attribution metrics. The ingestion collaborator
// writes daily stats on its own cadence; this job makes the cached per-event
// metrics catch up without anyone clicking "recalculate".
type RefreshAttributionJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	service   *attribution.Service
}

func NewRefreshAttributionJob(dbManager *database.DBManager, logger *slog.Logger) *RefreshAttributionJob {
	return &RefreshAttributionJob{
		dbManager: dbManager,
		logger:    logger,
		service:   attribution.NewService(dbManager, logger),
	}
}

// Run finds stale links and recalculates them one by one. A failing link is
// logged and skipped so the rest of the batch still refreshes.
func (j *RefreshAttributionJob) Run() error {
	db := j.dbManager.GetConnection()

	var staleLinkIDs []uint
	err := db.Raw(`
        SELECT la.link_id
        FROM link_associations la
        JOIN link_daily_stats lds ON lds.link_id = la.link_id
        GROUP BY la.link_id
        HAVING MAX(lds.updated_at) > MIN(la.updated_at)
        ORDER BY la.link_id
    `).Scan(&staleLinkIDs).Error
	if err != nil {
		j.logger.Error("Failed to find stale links", slog.Any("error", err))
		return err
	}

	if len(staleLinkIDs) == 0 {
		j.logger.Debug("No stale links found")
		return nil
	}

	j.logger.Info("Refreshing stale link attributions", slog.Int("count", len(staleLinkIDs)))

	refreshed := 0
	for _, linkID := range staleLinkIDs {
		if err := j.service.RecalculateForLink(context.Background(), linkID); err != nil {
			j.logger.Warn("Failed to refresh link attribution",
				slog.Uint64("linkID", uint64(linkID)),
				slog.Any("error", err))
			continue
		}
		refreshed++
	}

	j.logger.Info("Attribution refresh finished",
		slog.Int("refreshed", refreshed),
		slog.Int("failed", len(staleLinkIDs)-refreshed))
	return nil
}
