// Package auth owns the delegated-access lifecycle for remote calendars:
// the PKCE handshake, token refresh and revocation, plus the HTTP bearer
// middleware and per-address rate limiting.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"agenda-service/internal/apperr"
	"agenda-service/internal/cache"
	"agenda-service/internal/gcal"
	"agenda-service/internal/model"
	"agenda-service/internal/retry"
)

// sessionTTL bounds a pending PKCE handshake.
const sessionTTL = 10 * time.Minute

// rateWindow is the sliding window for handshake starts per address.
const rateWindow = time.Hour

// Exchanger is the OAuth surface the manager needs; *oauth2.Config
// satisfies it.
type Exchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

// LinkStore persists calendar links.
type LinkStore interface {
	SaveCalendarLink(ctx context.Context, l *model.CalendarLink) error
	GetCalendarLink(ctx context.Context, userID string) (*model.CalendarLink, error)
	UpdateLinkTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error
	SetLinkStatus(ctx context.Context, userID, status string) error
}

// Manager runs the per-user authorization state machine:
// NoSession -> PendingPKCE -> Active -> (Expired | Revoked).
type Manager struct {
	oauth   Exchanger
	cache   cache.Store
	links   LinkStore
	clients gcal.Clients

	startLimit  int
	refreshLead time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewManager(oauth Exchanger, kv cache.Store, links LinkStore, clients gcal.Clients, startLimit int, refreshLead time.Duration, log zerolog.Logger) *Manager {
	if startLimit <= 0 {
		startLimit = 3
	}
	return &Manager{
		oauth:       oauth,
		cache:       kv,
		links:       links,
		clients:     clients,
		startLimit:  startLimit,
		refreshLead: refreshLead,
		log:         log.With().Str("component", "auth").Logger(),
		now:         time.Now,
	}
}

func sessionKey(userID string) string { return "pkce:" + userID }
func rateKey(addr string) string      { return "authstart:" + addr }

// EncodeState wraps the user id as the opaque OAuth state parameter.
func EncodeState(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// DecodeState recovers the user id from the state parameter.
func DecodeState(state string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil || len(raw) == 0 {
		return "", apperr.Validation("malformed state parameter")
	}
	return string(raw), nil
}

// Start opens a PKCE handshake for the user and returns the provider's
// authorization URL. The per-address window is checked before any PKCE
// material is generated.
func (m *Manager) Start(ctx context.Context, userID, clientAddr string) (string, error) {
	if userID == "" {
		return "", apperr.Validation("user_id is required")
	}
	count, err := m.cache.Observe(ctx, rateKey(clientAddr), rateWindow)
	if err != nil {
		return "", err
	}
	if count > int64(m.startLimit) {
		return "", fmt.Errorf("%w: too many authorization attempts", apperr.ErrRateLimited)
	}

	verifier := oauth2.GenerateVerifier()
	if err := m.cache.Set(ctx, sessionKey(userID), verifier, sessionTTL); err != nil {
		return "", err
	}

	url := m.oauth.AuthCodeURL(EncodeState(userID),
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier))
	m.log.Info().Str("user_id", userID).Msg("authorization started")
	return url, nil
}

// Complete consumes the pending session exactly once: the stored verifier
// is deleted whether the code exchange succeeds or fails, so a stale
// verifier can never be retried.
func (m *Manager) Complete(ctx context.Context, userID, code string) error {
	if code == "" {
		return apperr.Validation("authorization code is required")
	}
	verifier, ok, err := m.cache.Get(ctx, sessionKey(userID))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no pending authorization session", apperr.ErrAuthExpired)
	}
	if err := m.cache.Delete(ctx, sessionKey(userID)); err != nil {
		return err
	}

	tok, err := m.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("code exchange failed")
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	link := &model.CalendarLink{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry.UTC(),
		Status:       model.LinkActive,
		CalendarID:   "primary",
		SyncEnabled:  true,
	}
	if err := m.links.SaveCalendarLink(ctx, link); err != nil {
		return err
	}
	m.log.Info().Str("user_id", userID).Msg("calendar linked")
	return nil
}

// Refresh renews the access token when its expiry falls within the lead
// time. A refresh failure marks the link inactive so downstream calls
// fail fast instead of silently degrading.
func (m *Manager) Refresh(ctx context.Context, userID string) error {
	link, err := m.links.GetCalendarLink(ctx, userID)
	if err != nil {
		return err
	}
	if !link.Usable() {
		return fmt.Errorf("%w: calendar link inactive", apperr.ErrAuthExpired)
	}
	if link.TokenExpiry.Sub(m.now()) > m.refreshLead {
		return nil
	}

	// an already-expired access token forces the source to refresh
	stale := &oauth2.Token{
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		Expiry:       m.now().Add(-time.Minute),
	}
	src := m.oauth.TokenSource(ctx, stale)

	var fresh *oauth2.Token
	err = retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		var terr error
		fresh, terr = src.Token()
		return classifyTokenErr(terr)
	})
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("token refresh failed, deactivating link")
		if serr := m.links.SetLinkStatus(ctx, userID, model.LinkInactive); serr != nil {
			return serr
		}
		return fmt.Errorf("%w: refresh token rejected", apperr.ErrAuthExpired)
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = link.RefreshToken
	}
	return m.links.UpdateLinkTokens(ctx, userID, fresh.AccessToken, refreshToken, fresh.Expiry.UTC())
}

// Revoke attempts remote token revocation and always deactivates the link
// locally; the local state change never depends on the remote call.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	link, err := m.links.GetCalendarLink(ctx, userID)
	if err != nil {
		return err
	}
	if api, aerr := m.clients.For(ctx, link); aerr == nil {
		token := link.RefreshToken
		if token == "" {
			token = link.AccessToken
		}
		if rerr := api.RevokeCredential(ctx, token); rerr != nil {
			m.log.Warn().Err(rerr).Str("user_id", userID).Msg("remote revocation failed")
		}
	}
	return m.links.SetLinkStatus(ctx, userID, model.LinkInactive)
}

func classifyTokenErr(err error) error {
	if err == nil {
		return nil
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode >= http.StatusInternalServerError {
		return apperr.Transient(err)
	}
	return err
}
