package model

import "time"

// Appointment statuses. Canceled appointments are retained and excluded
// from conflict checks.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Calendar link statuses.
const (
	LinkActive   = "active"
	LinkInactive = "inactive"
)

type WorkingHoursRule struct {
	ID             int       `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	DayOfWeek      int       `json:"day_of_week"` // 0 = Sunday .. 6 = Saturday
	IsWorkingDay   bool      `json:"is_working_day"`
	StartTime      string    `json:"start_time"` // "HH:MM", professional local time
	EndTime        string    `json:"end_time"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// ProfessionalSettings carries the per-professional overrides that trump
// the weekly rules: an administrative open/closed toggle and a 24h mode.
type ProfessionalSettings struct {
	ProfessionalID string `json:"professional_id"`
	Is24h          bool   `json:"is_24h"`
	CalendarOpen   bool   `json:"calendar_open"`
	Timezone       string `json:"timezone"` // IANA name, e.g. "America/Sao_Paulo"
}

type Specialty struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

type Appointment struct {
	ID              string    `json:"id"`
	ProfessionalID  string    `json:"professional_id"`
	SpecialtyID     string    `json:"specialty_id"`
	ClientID        string    `json:"client_id"`
	StartAtUTC      time.Time `json:"start_at_utc"`
	EndAtUTC        time.Time `json:"end_at_utc"`
	Status          string    `json:"status"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	SyncTagged      bool      `json:"sync_tagged"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Active reports whether the appointment participates in conflict checks.
func (a *Appointment) Active() bool {
	return a.Status != StatusCanceled
}

// CalendarLink holds the delegated-access credential for a user's remote
// calendar plus the webhook channel registered against it.
type CalendarLink struct {
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"-"`
	RefreshToken     string    `json:"-"`
	TokenExpiry      time.Time `json:"token_expiry"`
	Status           string    `json:"status"`
	CalendarID       string    `json:"calendar_id"`
	WebhookChannelID string    `json:"webhook_channel_id,omitempty"`
	WebhookResource  string    `json:"webhook_resource_id,omitempty"`
	WebhookExpiresAt time.Time `json:"webhook_expires_at,omitempty"`
	SyncEnabled      bool      `json:"sync_enabled"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// Usable reports whether the link may serve calendar reads and writes.
func (l *CalendarLink) Usable() bool {
	return l != nil && l.Status == LinkActive
}

// SyncCursor is the inbound reconciliation watermark for one user. The
// token is advanced only after a batch has been applied locally.
type SyncCursor struct {
	UserID       string    `json:"user_id"`
	SyncToken    string    `json:"sync_token,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}
