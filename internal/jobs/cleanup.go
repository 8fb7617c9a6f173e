package jobs

import (
	"log/slog"
	"time"

	"linkpulse/internal/config"
	"linkpulse/internal/database"
	"linkpulse/internal/links"
)

// CleanupJob handles cleanup of old daily click stats
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run removes daily click stats older than the retention period. Associations
// keep their cached metrics, so dropping the raw samples only limits how far
// back a future recalculation can reach.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.DailyStatsRetentionDays
	db := j.dbManager.GetConnection()
	cutoffDate := links.DayOf(time.Now().AddDate(0, 0, -retentionDays))

	j.logger.Info("Starting cleanup of old daily stats",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	// Count rows to be deleted first
	var countToDelete int64
	if err := db.Model(&links.LinkDailyStat{}).
		Where("date < ?", cutoffDate).
		Count(&countToDelete).Error; err != nil {
		j.logger.Error("Failed to count old daily stats", slog.Any("error", err))
		return err
	}

	if countToDelete == 0 {
		j.logger.Debug("No old daily stats to clean up")
		return nil
	}

	// Delete in batches to avoid locking the database for too long
	batchSize := 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("date < ?", cutoffDate).
			Limit(batchSize).
			Delete(&links.LinkDailyStat{})

		if result.Error != nil {
			j.logger.Error("Failed to delete old daily stats",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return result.Error
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	j.logger.Info("Cleaned up old daily stats",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", retentionDays))

	return nil
}
