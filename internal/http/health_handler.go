package http

import (
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"linkpulse/internal/attribution"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	DBStatus     string    `json:"db_status"`
	Associations int64     `json:"associations"`
}

// HealthIndexAction reports database reachability and how many associations
// the engine currently maintains
func HealthIndexAction(ctx *cartridge.Context) error {
	dbStatus := "ok"
	var associations int64

	db := ctx.DBManager.GetConnection()
	if db == nil {
		dbStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database ping failed", slog.Any("error", err))
		} else if err := db.Model(&attribution.Association{}).Count(&associations).Error; err != nil {
			ctx.Logger.Error("Failed to count associations", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:       "ok",
		Timestamp:    time.Now().UTC(),
		DBStatus:     dbStatus,
		Associations: associations,
	}

	if dbStatus != "ok" {
		health.Status = "degraded"
	}

	return ctx.JSON(health)
}
