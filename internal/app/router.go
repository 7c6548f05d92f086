package app

import (
	"github.com/gin-gonic/gin"

	"agenda-service/internal/auth"
)

// Router assembles the HTTP surface. The OAuth callback and the webhook
// endpoint stay outside the bearer middleware: the first is hit by the
// user's browser redirect, the second by the provider.
func (a *App) Router(staticTokens []string, jwtSecret string, rl *auth.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(a.Log))
	if rl != nil {
		router.Use(auth.RateLimit(rl))
	}

	router.GET("/oauth2callback", a.OAuthCallbackHandler)
	router.POST("/webhook/calendar-notify", a.WebhookNotifyHandler)

	api := router.Group("/api")
	api.Use(auth.Middleware(staticTokens, jwtSecret))
	{
		api.GET("/availability", a.GetAvailabilityHandler)
		api.POST("/book", a.CreateBookingHandler)
		api.DELETE("/appointments/:id", a.CancelAppointmentHandler)
		api.PATCH("/appointments/:id", a.RescheduleAppointmentHandler)

		api.GET("/auth/start", a.AuthStartHandler)

		professionals := api.Group("/professionals")
		{
			professionals.POST("/:id/working-hours", a.SetWorkingHoursHandler)
			professionals.PUT("/:id/working-hours/:rule_id", a.UpdateWorkingHoursHandler)
			professionals.GET("/:id/working-hours", a.ListWorkingHoursHandler)
			professionals.PUT("/:id/settings", a.SaveSettingsHandler)
			professionals.GET("/:id/appointments", a.ListAppointmentsHandler)
		}

		calendar := api.Group("/calendar")
		{
			calendar.POST("/check-availability", a.CheckAvailabilityHandler)
			calendar.POST("/check-freebusy", a.CheckFreeBusyHandler)
			calendar.POST("/disconnect", a.DisconnectHandler)
		}
	}

	return router
}
