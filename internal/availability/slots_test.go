package availability

import (
	"testing"
	"time"

	"agenda-service/internal/timeslot"
)

func TestGenerateSlotsWorkedExample(t *testing.T) {
	// Mon-Fri 09:00-17:00, 30-minute specialty, one existing 10:00-10:30
	// appointment: 09:00 and 10:30 must be offered, 10:00 must not.
	open, err := OpenIntervals(openProfile(), weekdayRules(), 2025, time.January, 6)
	if err != nil {
		t.Fatal(err)
	}
	busy := []timeslot.Interval{timeslot.New(
		time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	)}
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	slots := GenerateSlots(open, 30*time.Minute, busy, now)
	if len(slots) != 15 { // 16 half-hour slots in 8h, minus the booked one
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}

	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		starts[s.Start.Format("15:04")] = true
	}
	if !starts["09:00"] {
		t.Error("09:00 missing")
	}
	if !starts["10:30"] {
		t.Error("10:30 missing")
	}
	if starts["10:00"] {
		t.Error("10:00 offered despite existing appointment")
	}
}

func TestGenerateSlotsChronologicalAndDisjoint(t *testing.T) {
	open, err := OpenIntervals(openProfile(), weekdayRules(), 2025, time.January, 7)
	if err != nil {
		t.Fatal(err)
	}
	slots := GenerateSlots(open, 45*time.Minute, nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	for i := range slots {
		if !slots[i].Valid() {
			t.Errorf("slot %d invalid: %s", i, slots[i])
		}
		if !open[0].Contains(slots[i]) {
			t.Errorf("slot %d escapes the open interval: %s", i, slots[i])
		}
		if i > 0 {
			if slots[i].Overlaps(slots[i-1]) {
				t.Errorf("slots %d and %d overlap", i-1, i)
			}
			if !slots[i-1].Start.Before(slots[i].Start) {
				t.Errorf("slots out of order at %d", i)
			}
		}
	}
}

func TestGenerateSlotsPastStartsDropped(t *testing.T) {
	open, err := OpenIntervals(openProfile(), weekdayRules(), 2025, time.January, 6)
	if err != nil {
		t.Fatal(err)
	}
	// mid-morning on the same day: everything at or before 11:00 is gone
	now := time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC)
	slots := GenerateSlots(open, 30*time.Minute, nil, now)
	for _, s := range slots {
		if !s.Start.After(now) {
			t.Errorf("slot %s not strictly in the future", s)
		}
	}
	if len(slots) != 12 { // 11:30 through 16:30
		t.Errorf("expected 12 remaining slots, got %d", len(slots))
	}
}

func TestGenerateSlotsPartialTrailingWindowDropped(t *testing.T) {
	open := []timeslot.Interval{timeslot.New(
		time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 15, 0, 0, time.UTC),
	)}
	slots := GenerateSlots(open, 30*time.Minute, nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	// 09:00 and 09:30 fit; a 10:00-10:30 slot would spill past 10:15
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestGenerateSlotsBackToBackBookingDoesNotBlock(t *testing.T) {
	open := []timeslot.Interval{timeslot.New(
		time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
	)}
	busy := []timeslot.Interval{timeslot.New(
		time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
	)}
	slots := GenerateSlots(open, 30*time.Minute, busy, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(slots) != 1 || slots[0].Start.Hour() != 9 || slots[0].Start.Minute() != 0 {
		t.Fatalf("expected only the 09:00 slot, got %v", slots)
	}
}
