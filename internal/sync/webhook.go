package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
)

// renewLead is how long before channel expiry a renewal is attempted.
// Provider channels live up to a week; renewing half a day early keeps a
// failed renewal inside the polling fallback window.
const renewLead = 12 * time.Hour

// CallbackURL must be set for webhook channels to be registered; without
// it the reconciler runs on polling alone.
type WebhookConfig struct {
	CallbackURL  string
	PollInterval time.Duration
}

// RunMaintenance renews webhook channels and polls degraded links until
// ctx is done. Links whose channel is live still get their inbound delta
// through HandleNotification; everyone else is covered here.
func (r *Reconciler) RunMaintenance(ctx context.Context, cfg WebhookConfig) {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.maintain(ctx, cfg.CallbackURL)
		}
	}
}

func (r *Reconciler) maintain(ctx context.Context, callbackURL string) {
	links, err := r.store.ListSyncableLinks(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("list syncable links failed")
		return
	}
	for i := range links {
		link := &links[i]
		degraded := r.channelDegraded(link)
		if degraded && callbackURL != "" {
			if err := r.renewChannel(ctx, link, callbackURL); err != nil {
				r.log.Warn().Err(err).Str("user_id", link.UserID).Msg("channel renewal failed, sync degraded")
			}
		}
		// degraded links fall back to on-demand polling so remote
		// updates are never silently dropped
		if degraded || callbackURL == "" {
			if err := r.PullChanges(ctx, link); err != nil {
				r.log.Warn().Err(err).Str("user_id", link.UserID).Msg("poll failed")
			}
		}
	}
}

func (r *Reconciler) channelDegraded(link *model.CalendarLink) bool {
	if link.WebhookChannelID == "" {
		return true
	}
	return link.WebhookExpiresAt.Sub(r.now()) < renewLead
}

// renewChannel registers a fresh notification channel and stops the
// previous one best-effort.
func (r *Reconciler) renewChannel(ctx context.Context, link *model.CalendarLink, callbackURL string) error {
	api, err := r.clients.For(ctx, link)
	if err != nil {
		return err
	}
	channelID := uuid.NewString()
	resourceID, expiresAt, err := api.Watch(ctx, link.CalendarID, channelID, callbackURL)
	if err != nil {
		return err
	}
	if link.WebhookChannelID != "" {
		if serr := api.StopChannel(ctx, link.WebhookChannelID, link.WebhookResource); serr != nil {
			r.log.Debug().Err(serr).Str("user_id", link.UserID).Msg("stopping stale channel failed")
		}
	}
	if err := r.store.SetLinkWebhook(ctx, link.UserID, channelID, resourceID, expiresAt); err != nil {
		return err
	}
	link.WebhookChannelID = channelID
	link.WebhookResource = resourceID
	link.WebhookExpiresAt = expiresAt
	r.log.Info().Str("user_id", link.UserID).Time("expires_at", expiresAt).Msg("webhook channel renewed")
	return nil
}

// HandleNotification resolves a webhook ping back to its link and pulls
// the delta. Unknown channels are ignored: they belong to stale
// registrations. The initial "sync" ping carries no delta.
func (r *Reconciler) HandleNotification(ctx context.Context, channelID, resourceState string) error {
	if channelID == "" {
		return apperr.Validation("channel id is required")
	}
	link, err := r.store.GetLinkByChannel(ctx, channelID)
	if apperr.IsNotFound(err) {
		r.log.Debug().Str("channel_id", channelID).Msg("notification for unknown channel ignored")
		return nil
	}
	if err != nil {
		return err
	}
	if resourceState == "sync" {
		return nil
	}
	return r.PullChanges(ctx, link)
}

// StopWebhook tears the channel down on disconnect. The remote stop is
// best-effort; clearing local channel state is not.
func (r *Reconciler) StopWebhook(ctx context.Context, userID string) error {
	link, err := r.store.GetCalendarLink(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if link.WebhookChannelID == "" {
		return nil
	}
	if api, aerr := r.clients.For(ctx, link); aerr == nil {
		if serr := api.StopChannel(ctx, link.WebhookChannelID, link.WebhookResource); serr != nil {
			r.log.Warn().Err(serr).Str("user_id", userID).Msg("remote channel stop failed")
		}
	}
	return r.store.SetLinkWebhook(ctx, userID, "", "", time.Time{})
}
