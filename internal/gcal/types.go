// Package gcal wraps the remote calendar provider behind a small API so
// the conflict checker and the reconciler never touch the Google client
// directly and tests can substitute a fake calendar.
package gcal

import (
	"context"
	"errors"
	"time"

	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

// tagKey is the extended private property marking events owned by this
// engine. Its value is the local appointment ID.
const tagKey = "agendaSyncId"

// Event is the provider-neutral view of a remote calendar event.
type Event struct {
	ID          string
	Summary     string
	Description string
	Status      string // "confirmed", "tentative", "cancelled"
	Start       time.Time
	End         time.Time
	AllDay      bool
	// AppointmentID is the local appointment the event was created for,
	// present only on events this engine tagged at insert time.
	AppointmentID string
}

// Tagged reports whether the event is engine-owned.
func (e Event) Tagged() bool { return e.AppointmentID != "" }

// Canceled reports the provider's cancelled status.
func (e Event) Canceled() bool { return e.Status == "cancelled" }

// Interval returns the event's occupied interval.
func (e Event) Interval() timeslot.Interval { return timeslot.New(e.Start, e.End) }

// ErrSyncTokenExpired signals that the incremental cursor is no longer
// valid and the caller must re-list from a time window instead.
var ErrSyncTokenExpired = errors.New("sync token expired")

// API is the per-user calendar handle.
type API interface {
	// ListEvents returns the events intersecting window, expanded to
	// single occurrences, including cancelled ones.
	ListEvents(ctx context.Context, calendarID string, window timeslot.Interval) ([]Event, error)
	// ChangedEvents returns the delta since syncToken (or since updatedMin
	// when the token is empty) plus the next token.
	ChangedEvents(ctx context.Context, calendarID, syncToken string, updatedMin time.Time) ([]Event, string, error)
	// FreeBusy returns the aggregated busy intervals for the window.
	FreeBusy(ctx context.Context, calendarID string, window timeslot.Interval) ([]timeslot.Interval, error)
	InsertEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	UpdateEvent(ctx context.Context, calendarID string, ev Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	// Watch registers a notification channel; it returns the provider's
	// resource id and the channel expiry.
	Watch(ctx context.Context, calendarID, channelID, callbackURL string) (string, time.Time, error)
	StopChannel(ctx context.Context, channelID, resourceID string) error
	RevokeCredential(ctx context.Context, token string) error
}

// Clients builds an API bound to one user's calendar link.
type Clients interface {
	For(ctx context.Context, link *model.CalendarLink) (API, error)
}
