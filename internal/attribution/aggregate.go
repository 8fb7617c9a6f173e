package attribution

import (
	"sort"

	"github.com/samber/lo"

	"linkpulse/internal/links"
)

// AggregateRange reduces a link's time series over one attributed range into
// cached metrics. The filter is half-open: a day belongs to the range when
// start <= day < end, with nil bounds always satisfying their side. The input
// series is never mutated and the result is deterministic for identical
// inputs: breakdowns are ordered by clicks descending, then key ascending,
// truncated to topN.
func AggregateRange(series []links.DayStat, r AttributionRange, topN int) RangeMetrics {
	countrySums := make(map[string]int64)
	referrerSums := make(map[string]int64)

	metrics := RangeMetrics{}
	for _, day := range series {
		if !r.Contains(day.Date) {
			continue
		}
		metrics.TotalClicks += day.Clicks
		for country, clicks := range day.Countries {
			countrySums[country] += clicks
		}
		for referrer, clicks := range day.Referrers {
			referrerSums[referrer] += clicks
		}
	}

	metrics.TopCountries = topEntries(countrySums, topN)
	metrics.TopReferrers = topEntries(referrerSums, topN)
	return metrics
}

// topEntries picks the N largest counts, ties broken by key order
func topEntries(sums map[string]int64, topN int) []BreakdownEntry {
	entries := lo.MapToSlice(sums, func(key string, clicks int64) BreakdownEntry {
		return BreakdownEntry{Key: key, Clicks: clicks}
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Clicks != entries[j].Clicks {
			return entries[i].Clicks > entries[j].Clicks
		}
		return entries[i].Key < entries[j].Key
	})
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}
