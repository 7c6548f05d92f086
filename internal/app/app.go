// Package app wires the engine's services onto the gin HTTP surface.
package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"agenda-service/internal/apperr"
	"agenda-service/internal/auth"
	"agenda-service/internal/booking"
	"agenda-service/internal/gcal"
	"agenda-service/internal/store"
	"agenda-service/internal/sync"
)

type App struct {
	Store   *store.Store
	Booking *booking.Service
	Auth    *auth.Manager
	Checker *gcal.Checker
	Sync    *sync.Reconciler
	Log     zerolog.Logger
}

// fail maps the error taxonomy onto HTTP statuses.
func (a *App) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsValidation(err):
		status = http.StatusBadRequest
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case apperr.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrRateLimited):
		status = http.StatusTooManyRequests
	case apperr.IsAuthExpired(err):
		status = http.StatusUnauthorized
	case apperr.IsTransient(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		a.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// RequestLogger emits one structured line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
