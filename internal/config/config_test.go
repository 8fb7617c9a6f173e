package config_test

import (
	"os"
	"testing"

	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/config"
)

func TestMain(m *testing.M) {
	os.Setenv("LINKPULSE_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

// The application logger is built by cartridge straight from the config, so
// the config must satisfy cartridge's provider interfaces with the log
// rotation settings filled in.
func TestConfigDrivesCartridgeLogger(t *testing.T) {
	cfg := config.GetConfig()

	var provider cartridge.LogConfigProvider = cfg
	assert.Equal(t, "logs", provider.GetLogDirectory())
	assert.Equal(t, 20, provider.GetLogMaxSizeMB())
	assert.Equal(t, 10, provider.GetLogMaxBackups())
	assert.Equal(t, 30, provider.GetLogMaxAgeDays())
	assert.NotEmpty(t, provider.GetLogLevel())

	logger := cartridge.NewLogger(cfg, nil)
	require.NotNil(t, logger)
	logger.Debug("logger wired from config")
}

func TestConfigDefaults(t *testing.T) {
	cfg := config.GetConfig()

	assert.Equal(t, config.Test, cfg.Environment)
	assert.Equal(t, "linkpulse", cfg.AppName)
	assert.Equal(t, 10, cfg.TopBreakdownSize)
	assert.Equal(t, 5, cfg.LockTimeoutSeconds)
	assert.Equal(t, 365, cfg.DailyStatsRetentionDays)
}
