package profiles_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/config"
	"linkpulse/internal/profiles"
	"linkpulse/internal/testsupport"
)

func TestMain(m *testing.M) {
	os.Setenv("LINKPULSE_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

func TestProfileLinks(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	profile := &profiles.Profile{Name: "Campaign"}
	require.NoError(t, profiles.CreateProfile(db, profile))

	linkA := testsupport.CreateTestLink(t, db, "prof-a")
	linkB := testsupport.CreateTestLink(t, db, "prof-b")

	t.Run("default links come back in attach order", func(t *testing.T) {
		require.NoError(t, profiles.AddLink(db, profile.ID, linkB.ID))
		require.NoError(t, profiles.AddLink(db, profile.ID, linkA.ID))

		ids, err := profiles.GetDefaultLinkIDs(db, profile.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{linkB.ID, linkA.ID}, ids)
	})

	t.Run("re-attaching a link is a no-op", func(t *testing.T) {
		require.NoError(t, profiles.AddLink(db, profile.ID, linkA.ID))

		ids, err := profiles.GetDefaultLinkIDs(db, profile.ID)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})

	t.Run("removing a link shrinks the set", func(t *testing.T) {
		require.NoError(t, profiles.RemoveLink(db, profile.ID, linkB.ID))

		ids, err := profiles.GetDefaultLinkIDs(db, profile.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{linkA.ID}, ids)
	})

	t.Run("unknown profile returns not found", func(t *testing.T) {
		_, err := profiles.GetDefaultLinkIDs(db, 9999)
		var notFound *profiles.ProfileNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestCreateProfile(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	t.Run("requires a name", func(t *testing.T) {
		err := profiles.CreateProfile(db, &profiles.Profile{})
		assert.Error(t, err)
	})
}
