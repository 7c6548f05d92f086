// Package sync mirrors local appointments to the professional's remote
// calendar and ingests remote-side changes back, without feedback loops:
// outbound pushes originate only from booking notifications, and inbound
// applies write straight to the store without notifying outbound.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"agenda-service/internal/apperr"
	"agenda-service/internal/booking"
	"agenda-service/internal/gcal"
	"agenda-service/internal/model"
	"agenda-service/internal/retry"
)

// eventSummary is the title given to engine-owned remote events.
const eventSummary = "Booked appointment"

// queueDepth bounds the outbound task buffer. Enqueue never blocks the
// booking path; an overflowing queue drops the task and logs, and the
// next poll pass re-reconciles.
const queueDepth = 256

// Store is the durable-state slice the reconciler needs.
type Store interface {
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	GetAppointmentByExternalEvent(ctx context.Context, externalEventID string) (*model.Appointment, error)
	SetExternalEventID(ctx context.Context, id, externalEventID string) error
	UpdateAppointmentStatus(ctx context.Context, id, status string) (*model.Appointment, error)
	RescheduleIfFree(ctx context.Context, id string, start, end time.Time) (*model.Appointment, error)

	GetCalendarLink(ctx context.Context, userID string) (*model.CalendarLink, error)
	GetLinkByChannel(ctx context.Context, channelID string) (*model.CalendarLink, error)
	ListSyncableLinks(ctx context.Context) ([]model.CalendarLink, error)
	SetLinkWebhook(ctx context.Context, userID, channelID, resourceID string, expiresAt time.Time) error

	GetSyncCursor(ctx context.Context, userID string) (model.SyncCursor, error)
	AdvanceSyncCursor(ctx context.Context, userID, syncToken string, syncedAt time.Time) error
}

type task struct {
	appointmentID string
	change        string
}

type Reconciler struct {
	store   Store
	clients gcal.Clients
	log     zerolog.Logger
	policy  retry.Policy

	queue chan task
	done  chan struct{}
	now   func() time.Time
}

func NewReconciler(store Store, clients gcal.Clients, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		clients: clients,
		log:     log.With().Str("component", "sync").Logger(),
		policy:  retry.DefaultPolicy,
		queue:   make(chan task, queueDepth),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// AppointmentChanged implements the booking notifier. It never blocks.
func (r *Reconciler) AppointmentChanged(appointmentID, change string) {
	select {
	case r.queue <- task{appointmentID: appointmentID, change: change}:
	default:
		r.log.Warn().Str("appointment_id", appointmentID).Msg("outbound queue full, task dropped")
	}
}

// Run drains the outbound queue until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case t := <-r.queue:
			if err := r.Push(ctx, t.appointmentID, t.change); err != nil {
				r.log.Error().Err(err).
					Str("appointment_id", t.appointmentID).
					Str("change", t.change).
					Msg("outbound push failed")
			}
		}
	}
}

// Close stops Run and the webhook maintenance loop.
func (r *Reconciler) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// Push mirrors one appointment change to the remote calendar. It is
// idempotent: re-pushing an already-linked appointment updates the
// existing remote event instead of creating a duplicate, and deleting an
// appointment that was never synced is an outward no-op.
func (r *Reconciler) Push(ctx context.Context, appointmentID, change string) error {
	appt, err := r.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	link, err := r.store.GetCalendarLink(ctx, appt.ProfessionalID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !link.Usable() || !link.SyncEnabled {
		return nil
	}
	api, err := r.clients.For(ctx, link)
	if err != nil {
		return err
	}

	if change == booking.ChangeCancel || appt.Status == model.StatusCanceled {
		if appt.ExternalEventID == "" {
			return nil
		}
		return retry.Do(ctx, r.policy, func(ctx context.Context) error {
			return api.DeleteEvent(ctx, link.CalendarID, appt.ExternalEventID)
		})
	}

	ev := gcal.Event{
		ID:            appt.ExternalEventID,
		Summary:       eventSummary,
		Description:   fmt.Sprintf("specialty %s, client %s", appt.SpecialtyID, appt.ClientID),
		Start:         appt.StartAtUTC,
		End:           appt.EndAtUTC,
		AppointmentID: appt.ID,
	}
	if appt.ExternalEventID != "" {
		return retry.Do(ctx, r.policy, func(ctx context.Context) error {
			return api.UpdateEvent(ctx, link.CalendarID, ev)
		})
	}

	var eventID string
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var ierr error
		eventID, ierr = api.InsertEvent(ctx, link.CalendarID, ev)
		return ierr
	})
	if err != nil {
		return err
	}
	return r.store.SetExternalEventID(ctx, appt.ID, eventID)
}

// PullChanges ingests the remote delta for one link. The cursor advances
// only after the whole batch has been applied locally.
func (r *Reconciler) PullChanges(ctx context.Context, link *model.CalendarLink) error {
	if !link.Usable() || !link.SyncEnabled {
		return nil
	}
	api, err := r.clients.For(ctx, link)
	if err != nil {
		return err
	}
	cursor, err := r.store.GetSyncCursor(ctx, link.UserID)
	if err != nil {
		return err
	}

	events, nextToken, err := api.ChangedEvents(ctx, link.CalendarID, cursor.SyncToken, cursor.LastSyncedAt)
	if errors.Is(err, gcal.ErrSyncTokenExpired) {
		events, nextToken, err = api.ChangedEvents(ctx, link.CalendarID, "", cursor.LastSyncedAt)
	}
	if err != nil {
		return err
	}

	for _, ev := range events {
		r.applyInbound(ctx, ev)
	}
	return r.store.AdvanceSyncCursor(ctx, link.UserID, nextToken, r.now().UTC())
}

// applyInbound maps one remote event onto local state. Untagged events
// are never materialized as appointments; they only ever act as busy
// intervals through the conflict checker. Changes applied here write to
// the store directly and are never re-enqueued outbound.
func (r *Reconciler) applyInbound(ctx context.Context, ev gcal.Event) {
	if !ev.Tagged() {
		return
	}
	appt, err := r.store.GetAppointmentByExternalEvent(ctx, ev.ID)
	if apperr.IsNotFound(err) {
		// the event carries our tag but the link was never stored; heal
		// the mapping from the tag before applying
		appt, err = r.store.GetAppointment(ctx, ev.AppointmentID)
		if err == nil {
			if appt.ExternalEventID != "" {
				// the appointment is linked to another event, so this is a
				// tagged copy (tags survive user duplication); only the
				// linked event may drive local state
				r.log.Debug().Str("event_id", ev.ID).Str("appointment_id", appt.ID).
					Msg("tagged event ignored, appointment linked elsewhere")
				return
			}
			if lerr := r.store.SetExternalEventID(ctx, appt.ID, ev.ID); lerr != nil {
				r.log.Warn().Err(lerr).Str("event_id", ev.ID).Msg("link healing failed")
				return
			}
		}
	}
	if err != nil {
		if !apperr.IsNotFound(err) {
			r.log.Warn().Err(err).Str("event_id", ev.ID).Msg("inbound lookup failed")
		}
		return
	}

	if ev.Canceled() {
		if appt.Status != model.StatusCanceled {
			if _, uerr := r.store.UpdateAppointmentStatus(ctx, appt.ID, model.StatusCanceled); uerr != nil {
				r.log.Warn().Err(uerr).Str("appointment_id", appt.ID).Msg("inbound cancel failed")
			}
		}
		return
	}

	if !appt.StartAtUTC.Equal(ev.Start) || !appt.EndAtUTC.Equal(ev.End) {
		_, uerr := r.store.RescheduleIfFree(ctx, appt.ID, ev.Start, ev.End)
		if errors.Is(uerr, apperr.ErrSlotTaken) {
			// the local overlap invariant always wins over remote edits
			r.log.Warn().Str("appointment_id", appt.ID).Msg("inbound reschedule conflicts locally, ignored")
			return
		}
		if uerr != nil {
			r.log.Warn().Err(uerr).Str("appointment_id", appt.ID).Msg("inbound reschedule failed")
		}
	}
}
