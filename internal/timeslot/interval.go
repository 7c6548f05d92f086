// Package timeslot holds the interval arithmetic shared by availability
// generation, the local conflict guard and the external conflict checker.
// Every overlap decision in the service goes through Overlaps so the
// predicate cannot drift between call sites.
package timeslot

import (
	"fmt"
	"time"
)

// Interval is a half-open UTC interval [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New normalizes both endpoints to UTC.
func New(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Valid reports whether the interval is well-formed (non-empty, ordered).
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps is the half-open overlap test: [a.Start,a.End) and [b.Start,b.End)
// intersect iff a.Start < b.End && b.Start < a.End. Back-to-back intervals
// (one's end equal to the other's start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// OverlapsAny reports whether iv overlaps at least one interval in busy.
func (iv Interval) OverlapsAny(busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// Contains reports whether iv fully contains other.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}
