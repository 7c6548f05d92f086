package booking

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

// racyStore has no internal locking on purpose: the check-then-insert
// window below is only safe if the guard serializes callers per
// professional. Buckets are pre-created so distinct professionals touch
// disjoint state.
type racyStore struct {
	buckets map[string]*bucket
}

type bucket struct {
	appts []model.Appointment
}

func newRacyStore(professionals ...string) *racyStore {
	s := &racyStore{buckets: make(map[string]*bucket)}
	for _, p := range professionals {
		s.buckets[p] = &bucket{}
	}
	return s
}

func (s *racyStore) InsertIfFree(_ context.Context, a *model.Appointment) error {
	b := s.buckets[a.ProfessionalID]
	candidate := timeslot.New(a.StartAtUTC, a.EndAtUTC)
	for _, existing := range b.appts {
		if existing.Status != model.StatusCanceled &&
			candidate.Overlaps(timeslot.New(existing.StartAtUTC, existing.EndAtUTC)) {
			return apperr.ErrSlotTaken
		}
	}
	// widen the race window between check and insert
	runtime.Gosched()
	b.appts = append(b.appts, *a)
	return nil
}

func TestConcurrentReserveExactlyOneWins(t *testing.T) {
	store := newRacyStore("p1")
	guard := NewGuard(store)
	slot := timeslot.New(
		time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	)

	const racers = 16
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = guard.Reserve(context.Background(), &model.Appointment{
				ID: "appt-" + string(rune('a'+i)), ProfessionalID: "p1",
				StartAtUTC: slot.Start, EndAtUTC: slot.End, Status: model.StatusConfirmed,
			})
		}()
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("expected %d conflicts, got %d", racers-1, conflicts)
	}
	if got := len(store.buckets["p1"].appts); got != 1 {
		t.Errorf("store holds %d appointments, want 1", got)
	}
}

func TestConcurrentReserveDistinctProfessionals(t *testing.T) {
	pros := []string{"p1", "p2", "p3", "p4"}
	store := newRacyStore(pros...)
	guard := NewGuard(store)
	slot := timeslot.New(
		time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	)

	var wg sync.WaitGroup
	errs := make([]error, len(pros))
	for i, p := range pros {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = guard.Reserve(context.Background(), &model.Appointment{
				ID: "appt-" + p, ProfessionalID: p,
				StartAtUTC: slot.Start, EndAtUTC: slot.End, Status: model.StatusConfirmed,
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("professional %s: unexpected conflict: %v", pros[i], err)
		}
	}
}

func TestReserveAdjacentSlotsBothSucceed(t *testing.T) {
	store := newRacyStore("p1")
	guard := NewGuard(store)

	first := &model.Appointment{
		ID: "a1", ProfessionalID: "p1", Status: model.StatusConfirmed,
		StartAtUTC: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		EndAtUTC:   time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	}
	second := &model.Appointment{
		ID: "a2", ProfessionalID: "p1", Status: model.StatusConfirmed,
		StartAtUTC: time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
		EndAtUTC:   time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC),
	}
	if err := guard.Reserve(context.Background(), first); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := guard.Reserve(context.Background(), second); err != nil {
		t.Errorf("back-to-back reserve rejected: %v", err)
	}
}
