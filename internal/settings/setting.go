package settings

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// Setting keys
const (
	KeyProviderAPIToken = "provider_api_token"
	KeyProviderAPIBase  = "provider_api_base"
)

var settingCache *cache.Cache[string, string]

// SetupDefaultSettings initializes default settings in the database
func SetupDefaultSettings(dbConn *gorm.DB) error {
	settings := []Setting{
		{Key: KeyProviderAPIToken, Value: ""},
		{Key: KeyProviderAPIBase, Value: "https://api-ssl.bitly.com/v4"},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		for _, setting := range settings {
			// Use raw SQL for upsert
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				slog.Default().Error("Failed to upsert setting", slog.String("key", setting.Key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})

	// Initialize the cache
	loadCache(dbConn, slog.Default())

	return err
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	result := dbConn.Where("key = ?", key).First(&setting)

	if result.Error != nil {
		return "", result.Error
	}

	return setting.Value, nil
}

// UpdateSetting upserts a setting and refreshes the read-through cache
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO settings (key, value, created_at, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
        `, key, value, time.Now().UTC(), time.Now().UTC()).Error
	})
	if err != nil {
		return fmt.Errorf("failed to update setting %s: %w", key, err)
	}

	if settingCache != nil {
		settingCache.Clear()
	}
	return nil
}

// GetProviderToken returns the tracking provider API token, empty when the
// operator has not configured ingestion yet. Served from the cache.
func GetProviderToken(dbConn *gorm.DB) string {
	if settingCache == nil {
		loadCache(dbConn, slog.Default())
	}
	token, err := settingCache.Get(KeyProviderAPIToken)
	if err != nil {
		return ""
	}
	return token
}

// IsProviderConfigured reports whether ingestion credentials are present
func IsProviderConfigured(dbConn *gorm.DB) bool {
	return GetProviderToken(dbConn) != ""
}

// SaveProviderCredentials stores the tracking provider token and API base URL
func SaveProviderCredentials(dbConn *gorm.DB, token, apiBase string) error {
	if err := UpdateSetting(dbConn, KeyProviderAPIToken, token); err != nil {
		return err
	}
	if apiBase != "" {
		if err := UpdateSetting(dbConn, KeyProviderAPIBase, apiBase); err != nil {
			return err
		}
	}
	return nil
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) (string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).
			Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).
			Scan(&value).Error
		if err != nil {
			return "", err
		}
		return value, nil
	}
	settingCache = cache.NewCache[string, string](logger, 5*time.Minute, fetchFunc)
}

// ResetCache clears the settings cache; intended for tests.
func ResetCache() {
	settingCache = nil
}
