package gcal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

// Fake is an in-memory calendar used in tests and local development. It
// keeps a change log so incremental listing behaves like the provider's
// sync-token protocol.
type Fake struct {
	mu       sync.Mutex
	events   map[string]Event
	log      []Event
	nextID   int
	watchTTL time.Duration

	// Injectable failures, applied to the next matching call.
	ListErr   error
	FreeErr   error
	WriteErr  error
	WatchErr  error
	RevokeErr error

	InsertCalls int
	UpdateCalls int
	DeleteCalls int
	Revoked     []string
	Stopped     []string
}

func NewFake() *Fake {
	return &Fake{events: make(map[string]Event), watchTTL: 24 * time.Hour}
}

// Seed places an event directly on the calendar, as an outside actor
// editing it would.
func (f *Fake) Seed(ev Event) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == "" {
		f.nextID++
		ev.ID = fmt.Sprintf("ev-%d", f.nextID)
	}
	if ev.Status == "" {
		ev.Status = "confirmed"
	}
	f.events[ev.ID] = ev
	f.log = append(f.log, ev)
	return ev.ID
}

// Get returns a stored event by id.
func (f *Fake) Get(id string) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	return ev, ok
}

// Len counts live (non-cancelled) events.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if !ev.Canceled() {
			n++
		}
	}
	return n
}

func (f *Fake) ListEvents(_ context.Context, _ string, window timeslot.Interval) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		err := f.ListErr
		f.ListErr = nil
		return nil, err
	}
	var out []Event
	for _, ev := range f.events {
		if ev.Interval().Overlaps(window) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *Fake) ChangedEvents(_ context.Context, _ string, syncToken string, _ time.Time) ([]Event, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		err := f.ListErr
		f.ListErr = nil
		return nil, "", err
	}
	from := 0
	if syncToken != "" {
		n, err := strconv.Atoi(syncToken)
		if err != nil || n > len(f.log) {
			return nil, "", ErrSyncTokenExpired
		}
		from = n
	}
	delta := make([]Event, len(f.log)-from)
	copy(delta, f.log[from:])
	return delta, strconv.Itoa(len(f.log)), nil
}

func (f *Fake) FreeBusy(_ context.Context, _ string, window timeslot.Interval) ([]timeslot.Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FreeErr != nil {
		err := f.FreeErr
		f.FreeErr = nil
		return nil, err
	}
	var busy []timeslot.Interval
	for _, ev := range f.events {
		if ev.Canceled() || ev.AllDay {
			continue
		}
		if iv := ev.Interval(); iv.Overlaps(window) {
			busy = append(busy, iv)
		}
	}
	return busy, nil
}

func (f *Fake) InsertEvent(_ context.Context, _ string, ev Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InsertCalls++
	if f.WriteErr != nil {
		err := f.WriteErr
		f.WriteErr = nil
		return "", err
	}
	f.nextID++
	ev.ID = fmt.Sprintf("ev-%d", f.nextID)
	if ev.Status == "" {
		ev.Status = "confirmed"
	}
	f.events[ev.ID] = ev
	f.log = append(f.log, ev)
	return ev.ID, nil
}

func (f *Fake) UpdateEvent(_ context.Context, _ string, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.WriteErr != nil {
		err := f.WriteErr
		f.WriteErr = nil
		return err
	}
	if _, ok := f.events[ev.ID]; !ok {
		return fmt.Errorf("event %s not found", ev.ID)
	}
	if ev.Status == "" {
		ev.Status = "confirmed"
	}
	f.events[ev.ID] = ev
	f.log = append(f.log, ev)
	return nil
}

func (f *Fake) DeleteEvent(_ context.Context, _ string, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.WriteErr != nil {
		err := f.WriteErr
		f.WriteErr = nil
		return err
	}
	ev, ok := f.events[eventID]
	if !ok {
		return nil
	}
	ev.Status = "cancelled"
	f.events[eventID] = ev
	f.log = append(f.log, ev)
	return nil
}

func (f *Fake) Watch(_ context.Context, _ string, channelID, _ string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchErr != nil {
		err := f.WatchErr
		f.WatchErr = nil
		return "", time.Time{}, err
	}
	return "res-" + channelID, time.Now().Add(f.watchTTL).UTC(), nil
}

func (f *Fake) StopChannel(_ context.Context, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped = append(f.Stopped, channelID)
	return nil
}

func (f *Fake) RevokeCredential(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		err := f.RevokeErr
		f.RevokeErr = nil
		return err
	}
	f.Revoked = append(f.Revoked, token)
	return nil
}

// FakeClients hands out the same Fake for every link.
type FakeClients struct {
	Calendar *Fake
	Err      error
}

func (fc FakeClients) For(_ context.Context, link *model.CalendarLink) (API, error) {
	if fc.Err != nil {
		return nil, fc.Err
	}
	if !link.Usable() {
		return nil, fmt.Errorf("calendar link inactive")
	}
	return fc.Calendar, nil
}
