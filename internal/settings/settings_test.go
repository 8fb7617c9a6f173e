package settings_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/config"
	"linkpulse/internal/settings"
	"linkpulse/internal/testsupport"
)

func TestMain(m *testing.M) {
	os.Setenv("LINKPULSE_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

func TestSetupDefaultSettings(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	settings.ResetCache()

	require.NoError(t, settings.SetupDefaultSettings(db))

	t.Run("seeds the provider defaults", func(t *testing.T) {
		token, err := settings.GetSetting(db, settings.KeyProviderAPIToken)
		require.NoError(t, err)
		assert.Empty(t, token)

		apiBase, err := settings.GetSetting(db, settings.KeyProviderAPIBase)
		require.NoError(t, err)
		assert.Equal(t, "https://api-ssl.bitly.com/v4", apiBase)
	})

	t.Run("rerunning keeps existing values", func(t *testing.T) {
		require.NoError(t, settings.UpdateSetting(db, settings.KeyProviderAPIBase, "https://proxy.internal/v4"))
		require.NoError(t, settings.SetupDefaultSettings(db))

		apiBase, err := settings.GetSetting(db, settings.KeyProviderAPIBase)
		require.NoError(t, err)
		assert.Equal(t, "https://proxy.internal/v4", apiBase)
	})
}

func TestProviderCredentials(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	settings.ResetCache()

	require.NoError(t, settings.SetupDefaultSettings(db))

	t.Run("unconfigured by default", func(t *testing.T) {
		assert.False(t, settings.IsProviderConfigured(db))
		assert.Empty(t, settings.GetProviderToken(db))
	})

	t.Run("saving the token configures the provider", func(t *testing.T) {
		require.NoError(t, settings.SaveProviderCredentials(db, "secret-token", ""))

		assert.True(t, settings.IsProviderConfigured(db))
		assert.Equal(t, "secret-token", settings.GetProviderToken(db))

		// Empty API base keeps the default
		apiBase, err := settings.GetSetting(db, settings.KeyProviderAPIBase)
		require.NoError(t, err)
		assert.Equal(t, "https://api-ssl.bitly.com/v4", apiBase)
	})

	t.Run("token updates invalidate the cache", func(t *testing.T) {
		require.NoError(t, settings.SaveProviderCredentials(db, "rotated-token", "https://api.example.com/v4"))

		assert.Equal(t, "rotated-token", settings.GetProviderToken(db))

		apiBase, err := settings.GetSetting(db, settings.KeyProviderAPIBase)
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/v4", apiBase)
	})
}
