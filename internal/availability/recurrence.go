package availability

import (
	"time"

	"agenda-service/internal/apperr"
	"agenda-service/internal/timeslot"
)

const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

// maxOccurrences caps a single expansion regardless of the requested
// bounds.
const maxOccurrences = 100

// Recurrence describes how a booking request repeats. With neither
// EndDate nor OccurrenceCount set the request expands to exactly its
// first occurrence.
type Recurrence struct {
	Type            string     `json:"type"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	OccurrenceCount int        `json:"occurrence_count,omitempty"`
}

// Expand produces the ordered, finite occurrence sequence for one booking
// request. The first occurrence is returned as given; each following one
// advances by a day, a week, or a calendar month. Month advances clamp to
// the last day of shorter months (Jan 31 + 1 month is Feb 28, not Mar 3).
func Expand(first timeslot.Interval, rec *Recurrence) ([]timeslot.Interval, error) {
	if !first.Valid() {
		return nil, apperr.Validation("occurrence start must precede end")
	}
	if rec == nil || (rec.EndDate == nil && rec.OccurrenceCount == 0) {
		return []timeslot.Interval{first}, nil
	}
	switch rec.Type {
	case RecurDaily, RecurWeekly, RecurMonthly:
	default:
		return nil, apperr.Validation("unknown recurrence type %q", rec.Type)
	}
	if rec.OccurrenceCount < 0 {
		return nil, apperr.Validation("occurrence_count must be positive")
	}

	limit := rec.OccurrenceCount
	if limit == 0 || limit > maxOccurrences {
		limit = maxOccurrences
	}
	duration := first.Duration()

	occurrences := make([]timeslot.Interval, 0, limit)
	for n := 0; len(occurrences) < limit; n++ {
		start := advance(first.Start, rec.Type, n)
		if rec.EndDate != nil && start.After(*rec.EndDate) {
			break
		}
		occurrences = append(occurrences, timeslot.New(start, start.Add(duration)))
	}
	return occurrences, nil
}

// advance moves the anchor forward n steps. Month steps are computed from
// the anchor each time so a clamped short month does not shift the day of
// every later occurrence.
func advance(anchor time.Time, typ string, n int) time.Time {
	if n == 0 {
		return anchor
	}
	switch typ {
	case RecurDaily:
		return anchor.AddDate(0, 0, n)
	case RecurWeekly:
		return anchor.AddDate(0, 0, 7*n)
	default: // RecurMonthly
		return addMonthsClamped(anchor, n)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	first := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
