package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agenda-service/internal/apperr"
	"agenda-service/internal/auth"
	"agenda-service/internal/gcal"
	"agenda-service/internal/timeslot"
)

// GET /api/auth/start?user_id=
func (a *App) AuthStartHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		a.fail(c, apperr.Validation("user_id is required"))
		return
	}

	authURL, err := a.Auth.Start(c.Request.Context(), userID, c.ClientIP())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// GET /oauth2callback?code=&state=
// Consumes the single-use handshake session; a replayed callback gets 401.
func (a *App) OAuthCallbackHandler(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		a.fail(c, apperr.Validation("code and state are required"))
		return
	}
	userID, err := auth.DecodeState(state)
	if err != nil {
		a.fail(c, err)
		return
	}

	if err := a.Auth.Complete(c.Request.Context(), userID, code); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "user_id": userID})
}

type checkSlotsReq struct {
	UserID string `json:"user_id" binding:"required"`
	Slots  []struct {
		Start time.Time `json:"start" binding:"required"`
		End   time.Time `json:"end" binding:"required"`
	} `json:"slots" binding:"required"`
}

type checkSlotResp struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// POST /api/calendar/check-availability queries the remote calendar's
// event list; POST /api/calendar/check-freebusy asks for aggregated busy
// intervals. A slot that could not be verified reports its error and
// available=false, never a silent pass.
func (a *App) CheckAvailabilityHandler(c *gin.Context) {
	a.checkSlots(c, gcal.StrategyEvents)
}

func (a *App) CheckFreeBusyHandler(c *gin.Context) {
	a.checkSlots(c, gcal.StrategyFreeBusy)
}

func (a *App) checkSlots(c *gin.Context, strategy gcal.Strategy) {
	var req checkSlotsReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots := make([]timeslot.Interval, 0, len(req.Slots))
	for _, s := range req.Slots {
		iv := timeslot.New(s.Start.UTC(), s.End.UTC())
		if !iv.Valid() {
			a.fail(c, apperr.Validation("slot start must precede end"))
			return
		}
		slots = append(slots, iv)
	}

	ctx := c.Request.Context()
	if err := a.Auth.Refresh(ctx, req.UserID); err != nil {
		a.fail(c, err)
		return
	}
	link, err := a.Store.GetCalendarLink(ctx, req.UserID)
	if err != nil {
		a.fail(c, err)
		return
	}

	checks := a.Checker.CheckSlots(ctx, link, slots, strategy)
	out := make([]checkSlotResp, len(checks))
	for i, chk := range checks {
		out[i] = checkSlotResp{
			Start:     chk.Slot.Start,
			End:       chk.Slot.End,
			Available: chk.Available,
			Detail:    chk.ConflictDetail,
		}
		if chk.Err != nil {
			out[i].Error = chk.Err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{"strategy": string(strategy), "slots": out})
}

type disconnectReq struct {
	UserID string `json:"user_id" binding:"required"`
}

// POST /api/calendar/disconnect
// Tears down the webhook channel, revokes the credential remotely
// best-effort and deactivates the link.
func (a *App) DisconnectHandler(c *gin.Context) {
	var req disconnectReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := a.Sync.StopWebhook(ctx, req.UserID); err != nil {
		a.Log.Warn().Err(err).Str("user_id", req.UserID).Msg("webhook teardown failed")
	}
	if err := a.Auth.Revoke(ctx, req.UserID); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": true})
}

// POST /webhook/calendar-notify
// Unauthenticated; the channel id from the notification headers is the
// credential. Unknown channels are acknowledged and dropped so the
// provider stops retrying stale registrations.
func (a *App) WebhookNotifyHandler(c *gin.Context) {
	channelID := c.GetHeader("X-Goog-Channel-ID")
	state := c.GetHeader("X-Goog-Resource-State")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing channel id"})
		return
	}

	if err := a.Sync.HandleNotification(c.Request.Context(), channelID, state); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}
