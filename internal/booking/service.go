package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agenda-service/internal/apperr"
	"agenda-service/internal/availability"
	"agenda-service/internal/gcal"
	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

// Store is the slice of the durable store the booking service needs.
type Store interface {
	Reserver
	GetSpecialty(ctx context.Context, id string) (*model.Specialty, error)
	GetProfessionalSettings(ctx context.Context, professionalID string) (model.ProfessionalSettings, error)
	ListWorkingHoursRules(ctx context.Context, professionalID string) ([]model.WorkingHoursRule, error)
	ListActiveAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error)
	GetCalendarLink(ctx context.Context, userID string) (*model.CalendarLink, error)
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, status string) (*model.Appointment, error)
	RescheduleIfFree(ctx context.Context, id string, start, end time.Time) (*model.Appointment, error)
}

// ExternalChecker answers remote busy questions; nil results are never
// produced, an unverifiable slot carries Err.
type ExternalChecker interface {
	CheckSlot(ctx context.Context, link *model.CalendarLink, slot timeslot.Interval, strategy gcal.Strategy) gcal.SlotCheck
	CheckSlots(ctx context.Context, link *model.CalendarLink, slots []timeslot.Interval, strategy gcal.Strategy) []gcal.SlotCheck
}

// Notifier receives appointment change events for outbound mirroring.
// Implementations must not block.
type Notifier interface {
	AppointmentChanged(appointmentID, change string)
}

// Outbound change kinds handed to the Notifier.
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeCancel = "cancel"
)

// Occurrence outcomes. A batch mixes them freely; one rejected occurrence
// never aborts its accepted siblings.
const (
	OutcomeAccepted           = "accepted"
	OutcomeRejectedConflict   = "rejected_conflict"
	OutcomeRejectedUnverified = "rejected_unverified"
)

type Request struct {
	ProfessionalID string                   `json:"professional_id"`
	SpecialtyID    string                   `json:"specialty_id"`
	ClientID       string                   `json:"client_id"`
	Start          time.Time                `json:"start"`
	Recurrence     *availability.Recurrence `json:"recurrence,omitempty"`
	// RequireRemoteVerification rejects an occurrence when the remote
	// calendar cannot be confirmed free, instead of accepting with a
	// warning.
	RequireRemoteVerification bool `json:"require_remote_verification,omitempty"`
}

type OccurrenceResult struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Outcome       string    `json:"outcome"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Warning       string    `json:"warning,omitempty"`
}

// Result reports per-occurrence outcomes: a partial failure, not
// all-or-nothing.
type Result struct {
	Occurrences []OccurrenceResult `json:"occurrences"`
	Accepted    int                `json:"accepted"`
}

// SlotStatus is one availability answer. RemoteState is "free" when the
// external calendar confirmed the slot, "unknown" when it could not be
// consulted, and "unchecked" when no active link exists.
type SlotStatus struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	RemoteState string    `json:"remote_state"`
}

type Service struct {
	store   Store
	guard   *Guard
	checker ExternalChecker
	sync    Notifier
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, checker ExternalChecker, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		guard:   NewGuard(store),
		checker: checker,
		sync:    notifier,
		log:     log.With().Str("component", "booking").Logger(),
		now:     time.Now,
	}
}

// Availability returns the bookable slots for one professional, specialty
// and date. Local appointments always filter; the external calendar is
// applied as an additional filter when an active link exists. Remote-busy
// slots are dropped; slots the remote side could not confirm stay listed
// as "unknown".
func (s *Service) Availability(ctx context.Context, professionalID, specialtyID string, year int, month time.Month, day int) ([]SlotStatus, error) {
	spec, err := s.store.GetSpecialty(ctx, specialtyID)
	if err != nil {
		return nil, err
	}
	open, err := s.openIntervals(ctx, professionalID, year, month, day)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	dayWindow := timeslot.New(open[0].Start, open[len(open)-1].End)
	appts, err := s.store.ListActiveAppointments(ctx, professionalID, dayWindow.Start, dayWindow.End)
	if err != nil {
		return nil, err
	}
	busy := make([]timeslot.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, timeslot.New(a.StartAtUTC, a.EndAtUTC))
	}

	duration := time.Duration(spec.DurationMinutes) * time.Minute
	slots := availability.GenerateSlots(open, duration, busy, s.now().UTC())
	if len(slots) == 0 {
		return nil, nil
	}

	link, err := s.store.GetCalendarLink(ctx, professionalID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	if !link.Usable() {
		out := make([]SlotStatus, 0, len(slots))
		for _, slot := range slots {
			out = append(out, SlotStatus{Start: slot.Start, End: slot.End, RemoteState: "unchecked"})
		}
		return out, nil
	}

	checks := s.checker.CheckSlots(ctx, link, slots, gcal.StrategyFreeBusy)
	out := make([]SlotStatus, 0, len(slots))
	for _, chk := range checks {
		switch {
		case chk.Err != nil:
			out = append(out, SlotStatus{Start: chk.Slot.Start, End: chk.Slot.End, RemoteState: "unknown"})
		case chk.Available:
			out = append(out, SlotStatus{Start: chk.Slot.Start, End: chk.Slot.End, RemoteState: "free"})
		}
	}
	return out, nil
}

// Book processes a single or recurring booking request. Occurrences are
// handled in chronological order and independently: each is validated
// against working hours, checked against the remote calendar when linked,
// and then reserved through the guard.
func (s *Service) Book(ctx context.Context, req Request) (*Result, error) {
	if req.ProfessionalID == "" || req.SpecialtyID == "" || req.ClientID == "" {
		return nil, apperr.Validation("professional_id, specialty_id and client_id are required")
	}
	if req.Start.IsZero() {
		return nil, apperr.Validation("start is required")
	}
	spec, err := s.store.GetSpecialty(ctx, req.SpecialtyID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation("unknown specialty %q", req.SpecialtyID)
		}
		return nil, err
	}

	duration := time.Duration(spec.DurationMinutes) * time.Minute
	first := timeslot.New(req.Start, req.Start.Add(duration))
	occurrences, err := availability.Expand(first, req.Recurrence)
	if err != nil {
		return nil, err
	}

	link, err := s.store.GetCalendarLink(ctx, req.ProfessionalID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}

	result := &Result{Occurrences: make([]OccurrenceResult, 0, len(occurrences))}
	for _, occ := range occurrences {
		result.Occurrences = append(result.Occurrences, s.bookOne(ctx, req, occ, link))
	}
	for _, occ := range result.Occurrences {
		if occ.Outcome == OutcomeAccepted {
			result.Accepted++
		}
	}
	return result, nil
}

func (s *Service) bookOne(ctx context.Context, req Request, slot timeslot.Interval, link *model.CalendarLink) OccurrenceResult {
	res := OccurrenceResult{Start: slot.Start, End: slot.End}

	if !slot.Start.After(s.now().UTC()) {
		res.Outcome = OutcomeRejectedConflict
		res.Detail = "slot is in the past"
		return res
	}
	ok, err := s.withinWorkingHours(ctx, req.ProfessionalID, slot)
	if err != nil {
		res.Outcome = OutcomeRejectedConflict
		res.Detail = err.Error()
		return res
	}
	if !ok {
		res.Outcome = OutcomeRejectedConflict
		res.Detail = "outside working hours"
		return res
	}

	// External check runs before the reserve and never under the guard's
	// lock. A detected remote conflict rejects; an unverifiable remote
	// calendar warns unless strict verification was requested.
	if link.Usable() {
		chk := s.checker.CheckSlot(ctx, link, slot, gcal.StrategyEvents)
		switch {
		case chk.Err != nil:
			if req.RequireRemoteVerification {
				res.Outcome = OutcomeRejectedUnverified
				res.Detail = "remote calendar could not be verified"
				return res
			}
			res.Warning = "remote calendar could not be verified"
		case !chk.Available:
			res.Outcome = OutcomeRejectedConflict
			res.Detail = chk.ConflictDetail
			return res
		}
	}

	appt := &model.Appointment{
		ID:             uuid.NewString(),
		ProfessionalID: req.ProfessionalID,
		SpecialtyID:    req.SpecialtyID,
		ClientID:       req.ClientID,
		StartAtUTC:     slot.Start,
		EndAtUTC:       slot.End,
		Status:         model.StatusConfirmed,
	}
	if err := s.guard.Reserve(ctx, appt); err != nil {
		if errors.Is(err, apperr.ErrSlotTaken) {
			res.Outcome = OutcomeRejectedConflict
			res.Detail = "slot already booked"
			return res
		}
		res.Outcome = OutcomeRejectedConflict
		res.Detail = err.Error()
		s.log.Error().Err(err).Str("professional_id", req.ProfessionalID).Msg("reserve failed")
		return res
	}

	res.Outcome = OutcomeAccepted
	res.AppointmentID = appt.ID
	if s.sync != nil {
		s.sync.AppointmentChanged(appt.ID, ChangeCreate)
	}
	return res
}

// Cancel transitions the appointment to canceled; the row is retained and
// drops out of conflict checks.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.StatusCanceled {
		return nil, fmt.Errorf("%w: appointment already canceled", apperr.ErrValidation)
	}
	updated, err := s.store.UpdateAppointmentStatus(ctx, id, model.StatusCanceled)
	if err != nil {
		return nil, err
	}
	if s.sync != nil {
		s.sync.AppointmentChanged(id, ChangeCancel)
	}
	return updated, nil
}

// Reschedule moves an appointment, re-running the local overlap check in
// the store transaction.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time) (*model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.StatusCanceled {
		return nil, fmt.Errorf("%w: appointment is canceled", apperr.ErrValidation)
	}
	duration := appt.EndAtUTC.Sub(appt.StartAtUTC)
	updated, err := s.store.RescheduleIfFree(ctx, id, newStart.UTC(), newStart.UTC().Add(duration))
	if err != nil {
		return nil, err
	}
	if s.sync != nil {
		s.sync.AppointmentChanged(id, ChangeUpdate)
	}
	return updated, nil
}

func (s *Service) openIntervals(ctx context.Context, professionalID string, year int, month time.Month, day int) ([]timeslot.Interval, error) {
	settings, err := s.store.GetProfessionalSettings(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.ListWorkingHoursRules(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	return availability.OpenIntervals(settings, rules, year, month, day)
}

// withinWorkingHours verifies the slot lies inside an open interval and
// starts on the standard step boundary for it.
func (s *Service) withinWorkingHours(ctx context.Context, professionalID string, slot timeslot.Interval) (bool, error) {
	settings, err := s.store.GetProfessionalSettings(ctx, professionalID)
	if err != nil {
		return false, err
	}
	loc := time.UTC
	if settings.Timezone != "" {
		if l, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = l
		}
	}
	local := slot.Start.In(loc)
	open, err := s.openIntervals(ctx, professionalID, local.Year(), local.Month(), local.Day())
	if err != nil {
		return false, err
	}
	for _, window := range open {
		if window.Contains(slot) && slot.Start.Sub(window.Start)%slot.Duration() == 0 {
			return true, nil
		}
	}
	return false, nil
}
