package links_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/config"
	"linkpulse/internal/links"
	"linkpulse/internal/models"
	"linkpulse/internal/testsupport"
)

func TestMain(m *testing.M) {
	os.Setenv("LINKPULSE_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

func TestDayOf(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{
			name:  "midday truncates to midnight",
			input: time.Date(2025, time.March, 15, 13, 45, 12, 0, time.UTC),
			want:  time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "non-UTC zone converts before truncating",
			input: time.Date(2025, time.March, 15, 23, 30, 0, 0, time.FixedZone("CET", 3600)),
			want:  time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "midnight stays put",
			input: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, links.DayOf(tt.input).Equal(tt.want))
		})
	}
}

func TestCreateLink(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	t.Run("requires slug and name", func(t *testing.T) {
		err := links.CreateLink(db, &links.Link{Name: "no slug"})
		assert.Error(t, err)

		err = links.CreateLink(db, &links.Link{Slug: "noname1"})
		assert.Error(t, err)
	})

	t.Run("slug is unique", func(t *testing.T) {
		require.NoError(t, links.CreateLink(db, &links.Link{Slug: "dup1", Name: "first"}))
		err := links.CreateLink(db, &links.Link{Slug: "dup1", Name: "second"})
		assert.Error(t, err)
	})

	t.Run("lookup by slug", func(t *testing.T) {
		link, err := links.GetLinkBySlug(db, "dup1")
		require.NoError(t, err)
		assert.Equal(t, "first", link.Name)

		_, err = links.GetLinkBySlug(db, "missing")
		var notFound *links.LinkNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestGetTimeSeries(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	link := testsupport.CreateTestLink(t, db, "series1")

	t.Run("unknown link returns not found", func(t *testing.T) {
		_, err := links.GetTimeSeries(db, 9999)
		var notFound *links.LinkNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("returns days in date order", func(t *testing.T) {
		testsupport.CreateDailyStat(t, db, link.ID, testsupport.Day(2025, time.May, 3), 3, nil, nil)
		testsupport.CreateDailyStat(t, db, link.ID, testsupport.Day(2025, time.May, 1), 1, map[string]int64{"US": 1}, nil)
		testsupport.CreateDailyStat(t, db, link.ID, testsupport.Day(2025, time.May, 2), 2, nil, nil)

		series, err := links.GetTimeSeries(db, link.ID)
		require.NoError(t, err)
		require.Len(t, series, 3)

		assert.Equal(t, int64(1), series[0].Clicks)
		assert.Equal(t, int64(2), series[1].Clicks)
		assert.Equal(t, int64(3), series[2].Clicks)
		assert.Equal(t, int64(1), series[0].Countries["US"])
	})

	t.Run("malformed breakdown surfaces as an error", func(t *testing.T) {
		stat := links.LinkDailyStat{
			LinkID:    link.ID,
			Date:      testsupport.Day(2025, time.May, 4),
			Clicks:    9,
			Countries: models.JSON(`{"US": not json`),
		}
		require.NoError(t, db.Create(&stat).Error)

		_, err := links.GetTimeSeries(db, link.ID)
		assert.Error(t, err)

		require.NoError(t, db.Delete(&stat).Error)
	})
}

func TestUpsertDailyStats(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	link := testsupport.CreateTestLink(t, db, "upsert1")
	day1 := testsupport.Day(2025, time.June, 1)

	t.Run("re-ingested day overwrites the previous numbers", func(t *testing.T) {
		err := links.UpsertDailyStats(logger, db, link.ID, []links.DailySample{
			{Date: day1, Clicks: 10, Countries: map[string]int64{"US": 10}},
		})
		require.NoError(t, err)

		err = links.UpsertDailyStats(logger, db, link.ID, []links.DailySample{
			{Date: day1, Clicks: 14, Countries: map[string]int64{"US": 9, "DE": 5}},
		})
		require.NoError(t, err)

		series, err := links.GetTimeSeries(db, link.ID)
		require.NoError(t, err)
		require.Len(t, series, 1)
		assert.Equal(t, int64(14), series[0].Clicks)
		assert.Equal(t, int64(9), series[0].Countries["US"])
		assert.Equal(t, int64(5), series[0].Countries["DE"])
	})

	t.Run("referrer hostnames are bucketed into kinds", func(t *testing.T) {
		day2 := testsupport.Day(2025, time.June, 2)
		err := links.UpsertDailyStats(logger, db, link.ID, []links.DailySample{
			{Date: day2, Clicks: 12, Referrers: map[string]int64{
				"www.google.com":       5,
				"duckduckgo.com":       2,
				"twitter.com":          3,
				"totally-unknown.test": 1,
				"":                     1,
			}},
		})
		require.NoError(t, err)

		series, err := links.GetTimeSeries(db, link.ID)
		require.NoError(t, err)
		require.Len(t, series, 2)

		buckets := series[1].Referrers
		assert.Equal(t, int64(7), buckets["search"])
		assert.Equal(t, int64(3), buckets["social"])
		assert.Equal(t, int64(1), buckets["other"])
		assert.Equal(t, int64(1), buckets["direct"])
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, links.UpsertDailyStats(logger, db, link.ID, nil))
	})
}

func TestLatestStatUpdate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	link := testsupport.CreateTestLink(t, db, "latest1")

	t.Run("zero time when no stats exist", func(t *testing.T) {
		latest, err := links.LatestStatUpdate(db, link.ID)
		require.NoError(t, err)
		assert.True(t, latest.IsZero())
	})

	t.Run("reflects the newest write", func(t *testing.T) {
		err := links.UpsertDailyStats(logger, db, link.ID, []links.DailySample{
			{Date: testsupport.Day(2025, time.July, 1), Clicks: 4},
		})
		require.NoError(t, err)

		latest, err := links.LatestStatUpdate(db, link.ID)
		require.NoError(t, err)
		assert.False(t, latest.IsZero())
	})
}
