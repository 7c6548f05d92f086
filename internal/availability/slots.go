package availability

import (
	"time"

	"agenda-service/internal/timeslot"
)

// GenerateSlots discretizes the open intervals into candidate slots of
// exactly duration, stepping by duration (no overlapping offers), then
// drops slots that are not strictly in the future or that overlap a busy
// interval. Pure function: the caller supplies busy intervals and "now".
// Slots come back in chronological order.
func GenerateSlots(open []timeslot.Interval, duration time.Duration, busy []timeslot.Interval, now time.Time) []timeslot.Interval {
	if duration <= 0 {
		return nil
	}
	var slots []timeslot.Interval
	for _, window := range open {
		for s := window.Start; !s.Add(duration).After(window.End); s = s.Add(duration) {
			slot := timeslot.New(s, s.Add(duration))
			if !slot.Start.After(now) {
				continue
			}
			if slot.OverlapsAny(busy) {
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots
}
