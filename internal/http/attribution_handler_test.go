package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/attribution"
	"linkpulse/internal/models"
)

func TestNewAssociationView(t *testing.T) {
	start := time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)

	t.Run("formats bounded ranges as dates and keeps open ends nil", func(t *testing.T) {
		end := time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)
		assoc := attribution.Association{
			ID:          1,
			PublicID:    "abc-123",
			LinkID:      10,
			EventID:     20,
			RangeStart:  &start,
			RangeEnd:    &end,
			TotalClicks: 42,
			UpdatedAt:   time.Date(2025, time.February, 10, 8, 30, 0, 0, time.UTC),
		}

		view := newAssociationView(assoc)

		require.NotNil(t, view.RangeStart)
		assert.Equal(t, "2025-01-03", *view.RangeStart)
		require.NotNil(t, view.RangeEnd)
		assert.Equal(t, "2025-02-03", *view.RangeEnd)
		assert.Equal(t, int64(42), view.TotalClicks)
		assert.Equal(t, "2025-02-10T08:30:00Z", view.UpdatedAt)
	})

	t.Run("open-ended association keeps both bounds nil", func(t *testing.T) {
		view := newAssociationView(attribution.Association{ID: 2})

		assert.Nil(t, view.RangeStart)
		assert.Nil(t, view.RangeEnd)
		assert.NotNil(t, view.TopCountries)
		assert.NotNil(t, view.TopReferrers)
	})
}

func TestDecodeBreakdown(t *testing.T) {
	t.Run("resolves country codes to names", func(t *testing.T) {
		raw := models.JSON(`[{"key":"US","clicks":11},{"key":"DE","clicks":4}]`)

		items := decodeBreakdown(raw, true)

		require.Len(t, items, 2)
		assert.Equal(t, "US", items[0].Key)
		assert.Equal(t, "United States", items[0].Name)
		assert.Equal(t, int64(11), items[0].Clicks)
		assert.Equal(t, "Germany", items[1].Name)
	})

	t.Run("unknown codes fall back to the raw key", func(t *testing.T) {
		raw := models.JSON(`[{"key":"ZZ","clicks":1}]`)

		items := decodeBreakdown(raw, true)

		require.Len(t, items, 1)
		assert.Equal(t, "ZZ", items[0].Name)
	})

	t.Run("referrer kinds pass through untouched", func(t *testing.T) {
		raw := models.JSON(`[{"key":"search","clicks":7}]`)

		items := decodeBreakdown(raw, false)

		require.Len(t, items, 1)
		assert.Equal(t, "search", items[0].Key)
		assert.Equal(t, "search", items[0].Name)
	})

	t.Run("empty and malformed payloads decode to empty lists", func(t *testing.T) {
		assert.Empty(t, decodeBreakdown(nil, true))
		assert.Empty(t, decodeBreakdown(models.JSON(`not json`), true))
	})
}
