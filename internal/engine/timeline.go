package engine

import (
	"time"

	"livequiz-service/internal/domain"
)

// BuildTimeline assigns every question a contiguous absolute window, in list
// order, starting at start. It is pure: the same questions and start always
// produce the same timeline. The derived quiz start and end are returned
// alongside the entries; all three are zero-valued when there are no
// questions.
func BuildTimeline(questions []domain.Question, start time.Time) ([]domain.TimelineEntry, time.Time, time.Time) {
	if len(questions) == 0 {
		return nil, time.Time{}, time.Time{}
	}

	entries := make([]domain.TimelineEntry, 0, len(questions))
	cursor := start
	for _, q := range questions {
		end := cursor.Add(q.TimeLimit())
		entries = append(entries, domain.TimelineEntry{
			QuestionID: q.ID,
			StartAt:    cursor,
			EndAt:      end,
		})
		cursor = end
	}
	return entries, entries[0].StartAt, entries[len(entries)-1].EndAt
}

// timelineIndexAt returns the index of the entry whose window contains now,
// or -1 when now falls outside every window.
func timelineIndexAt(timeline []domain.TimelineEntry, now time.Time) int {
	for i, entry := range timeline {
		if !now.Before(entry.StartAt) && now.Before(entry.EndAt) {
			return i
		}
	}
	return -1
}
