package gcal

import (
	"context"
	"testing"
	"time"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

func activeLink() *model.CalendarLink {
	return &model.CalendarLink{
		UserID:      "u1",
		Status:      model.LinkActive,
		CalendarID:  "primary",
		SyncEnabled: true,
	}
}

func slotAt(hour, min int) timeslot.Interval {
	start := time.Date(2025, 1, 6, hour, min, 0, 0, time.UTC)
	return timeslot.New(start, start.Add(30*time.Minute))
}

func seededFake() *Fake {
	f := NewFake()
	f.Seed(Event{
		Summary: "external meeting",
		Start:   time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC),
	})
	f.Seed(Event{
		Summary: "cancelled meeting",
		Status:  "cancelled",
		Start:   time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC),
	})
	f.Seed(Event{
		Summary: "company holiday",
		AllDay:  true,
		Start:   time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
	})
	return f
}

func TestCheckSlotsEventStrategy(t *testing.T) {
	checker := NewChecker(FakeClients{Calendar: seededFake()})
	slots := []timeslot.Interval{slotAt(9, 0), slotAt(10, 30), slotAt(14, 0)}

	results := checker.CheckSlots(context.Background(), activeLink(), slots, StrategyEvents)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available {
		t.Error("09:00 should be available")
	}
	if results[1].Available {
		t.Error("10:30 overlaps a busy event and should not be available")
	}
	if results[1].ConflictDetail == "" {
		t.Error("conflicting slot missing detail")
	}
	// cancelled and all-day events never count as busy
	if !results[2].Available {
		t.Errorf("14:00 should be available, got %+v", results[2])
	}
}

func TestStrategiesAgree(t *testing.T) {
	// differential test: both strategies must return identical
	// availability for the same calendar state.
	checker := NewChecker(FakeClients{Calendar: seededFake()})
	link := activeLink()
	var slots []timeslot.Interval
	for h := 8; h < 16; h++ {
		slots = append(slots, slotAt(h, 0), slotAt(h, 30))
	}

	byEvents := checker.CheckSlots(context.Background(), link, slots, StrategyEvents)
	byFreeBusy := checker.CheckSlots(context.Background(), link, slots, StrategyFreeBusy)
	for i := range slots {
		if byEvents[i].Available != byFreeBusy[i].Available {
			t.Errorf("strategies disagree on %s: events=%v freebusy=%v",
				slots[i], byEvents[i].Available, byFreeBusy[i].Available)
		}
	}
}

func TestPerSlotFailureIsolated(t *testing.T) {
	fake := seededFake()
	fake.ListErr = apperr.Transient(context.DeadlineExceeded)
	checker := NewChecker(FakeClients{Calendar: fake})
	// run sequentially so the injected failure lands deterministically on
	// the first slot
	checker.parallel = 1

	results := checker.CheckSlots(context.Background(), activeLink(), []timeslot.Interval{slotAt(9, 0), slotAt(12, 0)}, StrategyEvents)
	if results[0].Err == nil {
		t.Fatal("first slot should carry the injected error")
	}
	if results[0].Available {
		t.Error("failed check must not report available")
	}
	if results[1].Err != nil || !results[1].Available {
		t.Errorf("sibling slot affected by failure: %+v", results[1])
	}
}

func TestCheckSlotsInactiveLink(t *testing.T) {
	checker := NewChecker(FakeClients{Calendar: seededFake()})
	link := activeLink()
	link.Status = model.LinkInactive

	results := checker.CheckSlots(context.Background(), link, []timeslot.Interval{slotAt(9, 0)}, StrategyEvents)
	if results[0].Err == nil {
		t.Error("inactive link should yield per-slot errors")
	}
	if results[0].Available {
		t.Error("inactive link must not report available")
	}
}

func TestCheckSlotBackToBackEvent(t *testing.T) {
	fake := NewFake()
	fake.Seed(Event{
		Start: time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
	})
	checker := NewChecker(FakeClients{Calendar: fake})

	res := checker.CheckSlot(context.Background(), activeLink(), slotAt(9, 0), StrategyEvents)
	if !res.Available {
		t.Errorf("slot ending exactly at event start should be available: %+v", res)
	}
}
