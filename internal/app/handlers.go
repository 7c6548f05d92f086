package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"agenda-service/internal/apperr"
	"agenda-service/internal/booking"
	"agenda-service/internal/model"
)

// maxRangeDays caps the multi-date availability query.
const maxRangeDays = 31

// GET /api/availability?professional_id=&specialty_id=&date=YYYY-MM-DD
// Alternatively from=YYYY-MM-DD&to=YYYY-MM-DD answers for an inclusive
// range of dates.
func (a *App) GetAvailabilityHandler(c *gin.Context) {
	professionalID := c.Query("professional_id")
	specialtyID := c.Query("specialty_id")
	if professionalID == "" || specialtyID == "" {
		a.fail(c, apperr.Validation("professional_id and specialty_id are required"))
		return
	}

	if dateStr := c.Query("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			a.fail(c, apperr.Validation("date must be YYYY-MM-DD"))
			return
		}
		slots, err := a.Booking.Availability(c.Request.Context(), professionalID, specialtyID, date.Year(), date.Month(), date.Day())
		if err != nil {
			a.fail(c, err)
			return
		}
		if slots == nil {
			slots = []booking.SlotStatus{}
		}
		c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": slots})
		return
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		a.fail(c, apperr.Validation("date or from/to must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		a.fail(c, apperr.Validation("date or from/to must be YYYY-MM-DD"))
		return
	}
	if to.Before(from) {
		a.fail(c, apperr.Validation("from must not be after to"))
		return
	}
	if int(to.Sub(from).Hours()/24) >= maxRangeDays {
		a.fail(c, apperr.Validation("range must not exceed %d days", maxRangeDays))
		return
	}

	type dateSlots struct {
		Date  string               `json:"date"`
		Slots []booking.SlotStatus `json:"slots"`
	}
	out := make([]dateSlots, 0, maxRangeDays)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		slots, err := a.Booking.Availability(c.Request.Context(), professionalID, specialtyID, day.Year(), day.Month(), day.Day())
		if err != nil {
			a.fail(c, err)
			return
		}
		if slots == nil {
			slots = []booking.SlotStatus{}
		}
		out = append(out, dateSlots{Date: day.Format("2006-01-02"), Slots: slots})
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

// POST /api/book
// A recurring request answers per occurrence; one rejected occurrence
// never aborts its accepted siblings.
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req booking.Request
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.Booking.Book(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}

	status := http.StatusCreated
	switch {
	case result.Accepted == 0:
		status = http.StatusConflict
	case result.Accepted < len(result.Occurrences):
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

// DELETE /api/appointments/:id
// Cancel is a status transition; the row and its history stay.
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	appt, err := a.Booking.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

type rescheduleReq struct {
	Start time.Time `json:"start" binding:"required"`
}

// PATCH /api/appointments/:id
func (a *App) RescheduleAppointmentHandler(c *gin.Context) {
	var req rescheduleReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	appt, err := a.Booking.Reschedule(c.Request.Context(), c.Param("id"), req.Start)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// GET /api/professionals/:id/appointments?from=ISO&to=ISO
func (a *App) ListAppointmentsHandler(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		a.fail(c, apperr.Validation("from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		a.fail(c, apperr.Validation("to must be RFC3339"))
		return
	}
	if !from.Before(to) {
		a.fail(c, apperr.Validation("from must be before to"))
		return
	}

	appts, err := a.Store.ListActiveAppointments(c.Request.Context(), c.Param("id"), from.UTC(), to.UTC())
	if err != nil {
		a.fail(c, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	c.JSON(http.StatusOK, appts)
}

// POST /api/professionals/:id/working-hours
// Accepts a list of weekly rules, inserted in order.
func (a *App) SetWorkingHoursHandler(c *gin.Context) {
	professionalID := c.Param("id")
	var payload []model.WorkingHoursRule
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for i := range payload {
		payload[i].ProfessionalID = professionalID
		if payload[i].DayOfWeek < 0 || payload[i].DayOfWeek > 6 {
			a.fail(c, apperr.Validation("day_of_week must be 0..6"))
			return
		}
		if err := a.Store.InsertWorkingHoursRule(ctx, &payload[i]); err != nil {
			a.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, payload)
}

// PUT /api/professionals/:id/working-hours/:rule_id
func (a *App) UpdateWorkingHoursHandler(c *gin.Context) {
	ruleID, err := strconv.Atoi(c.Param("rule_id"))
	if err != nil {
		a.fail(c, apperr.Validation("rule_id must be an integer"))
		return
	}

	var rule model.WorkingHoursRule
	if err := c.BindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = ruleID
	rule.ProfessionalID = c.Param("id")

	if err := a.Store.UpdateWorkingHoursRule(c.Request.Context(), &rule); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// GET /api/professionals/:id/working-hours
func (a *App) ListWorkingHoursHandler(c *gin.Context) {
	rules, err := a.Store.ListWorkingHoursRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	if rules == nil {
		rules = []model.WorkingHoursRule{}
	}
	c.JSON(http.StatusOK, rules)
}

// PUT /api/professionals/:id/settings
// The administrative open/closed toggle and the 24h override.
func (a *App) SaveSettingsHandler(c *gin.Context) {
	var settings model.ProfessionalSettings
	if err := c.BindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings.ProfessionalID = c.Param("id")
	if settings.Timezone != "" {
		if _, err := time.LoadLocation(settings.Timezone); err != nil {
			a.fail(c, apperr.Validation("timezone must be an IANA name"))
			return
		}
	}

	if err := a.Store.SaveProfessionalSettings(c.Request.Context(), settings); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
