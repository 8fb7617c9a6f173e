package attribution_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/attribution"
	"linkpulse/internal/config"
	"linkpulse/internal/events"
	"linkpulse/internal/links"
	"linkpulse/internal/models"
	"linkpulse/internal/testsupport"
)

func TestMain(m *testing.M) {
	os.Setenv("LINKPULSE_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

func TestAssociate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	service := attribution.NewService(dbManager, logger)
	ctx := context.Background()

	link := testsupport.CreateTestLink(t, db, "assoc1")
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.January, 1), 10, map[string]int64{"US": 6, "DE": 4}, nil)
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.January, 2), 5, map[string]int64{"US": 5}, nil)
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.February, 5), 20, map[string]int64{"DE": 20}, nil)

	event1 := testsupport.CreateTestEvent(t, db, "Launch", day(2025, time.January, 1))

	t.Run("single association owns the whole series", func(t *testing.T) {
		assoc, err := service.Associate(ctx, link.ID, event1.ID)
		require.NoError(t, err)

		assert.Nil(t, assoc.RangeStart)
		assert.Nil(t, assoc.RangeEnd)
		assert.Equal(t, int64(35), assoc.TotalClicks)
		assert.True(t, assoc.AutoCalculated)
		assert.NotEmpty(t, assoc.PublicID)
	})

	t.Run("repeat associate is a no-op", func(t *testing.T) {
		before, err := attribution.GetAssociation(db, link.ID, event1.ID)
		require.NoError(t, err)
		require.NotNil(t, before)

		time.Sleep(10 * time.Millisecond)
		assoc, err := service.Associate(ctx, link.ID, event1.ID)
		require.NoError(t, err)

		assert.Equal(t, before.ID, assoc.ID)
		assert.Equal(t, before.PublicID, assoc.PublicID)
		assert.True(t, assoc.UpdatedAt.Equal(before.UpdatedAt))
	})

	t.Run("second event splits the timeline", func(t *testing.T) {
		event2 := testsupport.CreateTestEvent(t, db, "Follow-up", day(2025, time.February, 1))

		assoc2, err := service.Associate(ctx, link.ID, event2.ID)
		require.NoError(t, err)

		assoc1, err := attribution.GetAssociation(db, link.ID, event1.ID)
		require.NoError(t, err)
		require.NotNil(t, assoc1)

		assert.Nil(t, assoc1.RangeStart)
		require.NotNil(t, assoc1.RangeEnd)
		assert.True(t, assoc1.RangeEnd.Equal(day(2025, time.February, 3)))
		assert.Equal(t, int64(15), assoc1.TotalClicks)

		require.NotNil(t, assoc2.RangeStart)
		assert.True(t, assoc2.RangeStart.Equal(day(2025, time.February, 3)))
		assert.Nil(t, assoc2.RangeEnd)
		assert.Equal(t, int64(20), assoc2.TotalClicks)

		// One recalculation stamps every row with the same logical timestamp
		assert.True(t, assoc1.UpdatedAt.Equal(assoc2.UpdatedAt))
	})

	t.Run("unknown link or event is rejected", func(t *testing.T) {
		_, err := service.Associate(ctx, 9999, event1.ID)
		var linkNotFound *links.LinkNotFoundError
		assert.ErrorAs(t, err, &linkNotFound)

		_, err = service.Associate(ctx, link.ID, 9999)
		var eventNotFound *events.EventNotFoundError
		assert.ErrorAs(t, err, &eventNotFound)
	})
}

func TestAssociateFailureLeavesNoRow(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	service := attribution.NewService(dbManager, logger)
	ctx := context.Background()

	link := testsupport.CreateTestLink(t, db, "broken-series")
	event := testsupport.CreateTestEvent(t, db, "Launch", day(2025, time.March, 1))

	stat := links.LinkDailyStat{
		LinkID:    link.ID,
		Date:      day(2025, time.February, 27),
		Clicks:    5,
		Countries: models.JSON("{broken"),
		Referrers: models.JSON("{}"),
	}
	require.NoError(t, db.Create(&stat).Error)

	_, err := service.Associate(ctx, link.ID, event.ID)
	require.Error(t, err)
	assert.True(t, attribution.IsSourceUnavailable(err))

	// the pair must not exist half-created with an unpartitioned range
	assoc, err := attribution.GetAssociation(db, link.ID, event.ID)
	require.NoError(t, err)
	assert.Nil(t, assoc)
}

func TestDisassociate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	service := attribution.NewService(dbManager, logger)
	ctx := context.Background()

	link := testsupport.CreateTestLink(t, db, "disassoc1")
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.January, 1), 10, nil, nil)
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.February, 5), 20, nil, nil)

	event1 := testsupport.CreateTestEvent(t, db, "First", day(2025, time.January, 1))
	event2 := testsupport.CreateTestEvent(t, db, "Second", day(2025, time.February, 1))

	_, err := service.Associate(ctx, link.ID, event1.ID)
	require.NoError(t, err)
	_, err = service.Associate(ctx, link.ID, event2.ID)
	require.NoError(t, err)

	t.Run("removal repartitions the survivor", func(t *testing.T) {
		require.NoError(t, service.Disassociate(ctx, link.ID, event2.ID))

		gone, err := attribution.GetAssociation(db, link.ID, event2.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		survivor, err := attribution.GetAssociation(db, link.ID, event1.ID)
		require.NoError(t, err)
		require.NotNil(t, survivor)
		assert.Nil(t, survivor.RangeStart)
		assert.Nil(t, survivor.RangeEnd)
		assert.Equal(t, int64(30), survivor.TotalClicks)
	})

	t.Run("removing an absent pairing succeeds", func(t *testing.T) {
		assert.NoError(t, service.Disassociate(ctx, link.ID, event2.ID))
	})
}

func TestBulkAssociate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	service := attribution.NewService(dbManager, logger)
	ctx := context.Background()

	event := testsupport.CreateTestEvent(t, db, "Bulk", day(2025, time.March, 1))

	var linkIDs []uint
	for _, slug := range []string{"bulk1", "bulk2", "bulk3", "bulk4"} {
		link := testsupport.CreateTestLink(t, db, slug)
		testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.March, 2), 7, nil, nil)
		linkIDs = append(linkIDs, link.ID)
	}

	t.Run("one bad link does not sink the batch", func(t *testing.T) {
		withBad := append(append([]uint{}, linkIDs...), 9999)

		result := service.BulkAssociate(ctx, withBad, event.ID)

		assert.Equal(t, len(linkIDs), result.Succeeded())
		assert.Equal(t, []uint{9999}, result.FailedLinkIDs())

		var partial *attribution.PartialBatchError
		require.ErrorAs(t, result.Err(), &partial)
		assert.Equal(t, []uint{9999}, partial.FailedLinkIDs)

		for i, linkID := range linkIDs {
			outcome := result.Outcomes[i]
			assert.Equal(t, linkID, outcome.LinkID)
			require.NoError(t, outcome.Err)
			require.NotNil(t, outcome.Association)
			assert.Equal(t, int64(7), outcome.Association.TotalClicks)
		}
	})

	t.Run("empty input returns an empty result", func(t *testing.T) {
		result := service.BulkAssociate(ctx, nil, event.ID)
		assert.Empty(t, result.Outcomes)
		assert.NoError(t, result.Err())
	})
}

func TestHandleEventDeletion(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	service := attribution.NewService(dbManager, logger)
	ctx := context.Background()

	link := testsupport.CreateTestLink(t, db, "del1")
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.January, 1), 10, nil, nil)
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.January, 20), 8, nil, nil)
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.February, 5), 20, nil, nil)

	event1 := testsupport.CreateTestEvent(t, db, "One", day(2025, time.January, 1))
	event2 := testsupport.CreateTestEvent(t, db, "Two", day(2025, time.January, 15))
	event3 := testsupport.CreateTestEvent(t, db, "Three", day(2025, time.February, 1))

	for _, ev := range []events.Event{event1, event2, event3} {
		_, err := service.Associate(ctx, link.ID, ev.ID)
		require.NoError(t, err)
	}

	t.Run("deleting the middle event heals the boundary", func(t *testing.T) {
		require.NoError(t, events.DeleteEvent(db, event2.ID))
		result := service.HandleEventDeletion(ctx, event2.ID)
		require.NoError(t, result.Err())

		gone, err := attribution.GetAssociation(db, link.ID, event2.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		first, err := attribution.GetAssociation(db, link.ID, event1.ID)
		require.NoError(t, err)
		require.NotNil(t, first)
		require.NotNil(t, first.RangeEnd)
		assert.True(t, first.RangeEnd.Equal(day(2025, time.February, 3)))
		assert.Equal(t, int64(18), first.TotalClicks)

		last, err := attribution.GetAssociation(db, link.ID, event3.ID)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, int64(20), last.TotalClicks)
	})

	t.Run("event with no associations is an empty batch", func(t *testing.T) {
		orphan := testsupport.CreateTestEvent(t, db, "Orphan", day(2025, time.June, 1))
		require.NoError(t, events.DeleteEvent(db, orphan.ID))

		result := service.HandleEventDeletion(ctx, orphan.ID)
		assert.Empty(t, result.Outcomes)
		assert.NoError(t, result.Err())
	})
}

func TestRecalculateForLink(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	service := attribution.NewService(dbManager, logger)
	ctx := context.Background()

	link := testsupport.CreateTestLink(t, db, "recalc1")
	testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.April, 1), 12, nil, map[string]int64{"direct": 12})

	event := testsupport.CreateTestEvent(t, db, "Recalc", day(2025, time.April, 1))
	_, err := service.Associate(ctx, link.ID, event.ID)
	require.NoError(t, err)

	t.Run("picks up new series days", func(t *testing.T) {
		testsupport.CreateDailyStat(t, db, link.ID, day(2025, time.April, 2), 8, nil, nil)

		require.NoError(t, service.RecalculateForLink(ctx, link.ID))

		assoc, err := attribution.GetAssociation(db, link.ID, event.ID)
		require.NoError(t, err)
		require.NotNil(t, assoc)
		assert.Equal(t, int64(20), assoc.TotalClicks)
	})

	t.Run("link without associations is a no-op", func(t *testing.T) {
		bare := testsupport.CreateTestLink(t, db, "recalc2")
		assert.NoError(t, service.RecalculateForLink(ctx, bare.ID))
	})
}
