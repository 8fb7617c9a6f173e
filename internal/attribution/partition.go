package attribution

import (
	"sort"
	"time"
)

// ResidualBufferDays is how many calendar days after an event's anchor date
// still count toward that event. Clicks keep trickling in for a short while
// after an event ends; two days absorbs that tail before the timeline hands
// over to the next event.
const ResidualBufferDays = 2

// PartitionRanges computes the attributed date ranges for the full set of
// events currently associated with one link. The result tiles the whole
// timeline: the first range is open at the past, the last at the future, and
// each interior boundary is the owning event's anchor date plus
// ResidualBufferDays. Events are ordered by anchor date, with the event ID as
// a deterministic tie-break.
//
// Two events sharing an anchor date sort by event ID, so the earlier-id
// event keeps its full range up to the shared boundary and the later-id
// event's interior window is clamped to empty (start == end), aggregating to
// zero. A later-id duplicate at the tail instead takes the open future range.
func PartitionRanges(evts []AnchoredEvent) []AttributionRange {
	if len(evts) == 0 {
		return nil
	}

	sorted := make([]AnchoredEvent, len(evts))
	copy(sorted, evts)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].AnchorDate.Equal(sorted[j].AnchorDate) {
			return sorted[i].AnchorDate.Before(sorted[j].AnchorDate)
		}
		return sorted[i].EventID < sorted[j].EventID
	})

	ranges := make([]AttributionRange, len(sorted))
	var prevEnd *time.Time
	for i, evt := range sorted {
		r := AttributionRange{EventID: evt.EventID, Start: prevEnd}
		if i < len(sorted)-1 {
			end := boundaryAfter(evt.AnchorDate)
			if r.Start != nil && end.Before(*r.Start) {
				end = *r.Start
			}
			r.End = &end
			prevEnd = r.End
		}
		ranges[i] = r
	}
	return ranges
}

// boundaryAfter returns the UTC day boundary that closes an event's range.
func boundaryAfter(anchor time.Time) time.Time {
	anchor = anchor.UTC()
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, ResidualBufferDays)
}
