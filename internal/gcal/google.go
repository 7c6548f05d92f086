package gcal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

const revokeURL = "https://oauth2.googleapis.com/revoke"

// GoogleClients builds Google Calendar handles from stored link tokens.
type GoogleClients struct {
	Config  *oauth2.Config
	Timeout time.Duration
}

func NewGoogleClients(cfg *oauth2.Config, timeout time.Duration) *GoogleClients {
	return &GoogleClients{Config: cfg, Timeout: timeout}
}

func (g *GoogleClients) For(ctx context.Context, link *model.CalendarLink) (API, error) {
	if !link.Usable() {
		return nil, fmt.Errorf("%w: calendar link inactive", apperr.ErrAuthExpired)
	}
	tok := &oauth2.Token{
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		Expiry:       link.TokenExpiry,
	}
	client := g.Config.Client(ctx, tok)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &googleAPI{srv: srv, http: client, timeout: g.Timeout}, nil
}

type googleAPI struct {
	srv     *calendar.Service
	http    *http.Client
	timeout time.Duration
}

func (g *googleAPI) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *googleAPI) ListEvents(ctx context.Context, calendarID string, window timeslot.Interval) ([]Event, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	call := g.srv.Events.List(calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(true).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		MaxResults(250)

	var out []Event
	for {
		resp, err := call.Do()
		if err != nil {
			return nil, classify(err)
		}
		for _, item := range resp.Items {
			out = append(out, fromGoogleEvent(item))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		call = call.PageToken(resp.NextPageToken)
	}
}

func (g *googleAPI) ChangedEvents(ctx context.Context, calendarID, syncToken string, updatedMin time.Time) ([]Event, string, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	call := g.srv.Events.List(calendarID).
		Context(ctx).
		SingleEvents(true).
		ShowDeleted(true).
		MaxResults(250)
	if syncToken != "" {
		call = call.SyncToken(syncToken)
	} else if !updatedMin.IsZero() {
		call = call.UpdatedMin(updatedMin.Format(time.RFC3339))
	}

	var out []Event
	for {
		resp, err := call.Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == http.StatusGone {
				return nil, "", ErrSyncTokenExpired
			}
			return nil, "", classify(err)
		}
		for _, item := range resp.Items {
			out = append(out, fromGoogleEvent(item))
		}
		if resp.NextPageToken == "" {
			return out, resp.NextSyncToken, nil
		}
		call = call.PageToken(resp.NextPageToken)
	}
}

func (g *googleAPI) FreeBusy(ctx context.Context, calendarID string, window timeslot.Interval) ([]timeslot.Interval, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	resp, err := g.srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("freebusy response missing calendar %q", calendarID)
	}
	var busy []timeslot.Interval
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end: %w", err)
		}
		busy = append(busy, timeslot.New(start, end))
	}
	return busy, nil
}

func (g *googleAPI) InsertEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	created, err := g.srv.Events.Insert(calendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return created.Id, nil
}

func (g *googleAPI) UpdateEvent(ctx context.Context, calendarID string, ev Event) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	_, err := g.srv.Events.Update(calendarID, ev.ID, toGoogleEvent(ev)).Context(ctx).Do()
	return classify(err)
}

func (g *googleAPI) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	err := g.srv.Events.Delete(calendarID, eventID).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		// already gone remotely; deletion is idempotent
		return nil
	}
	return classify(err)
}

func (g *googleAPI) Watch(ctx context.Context, calendarID, channelID, callbackURL string) (string, time.Time, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	ch, err := g.srv.Events.Watch(calendarID, &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: callbackURL,
	}).Context(ctx).Do()
	if err != nil {
		return "", time.Time{}, classify(err)
	}
	return ch.ResourceId, time.UnixMilli(ch.Expiration).UTC(), nil
}

func (g *googleAPI) StopChannel(ctx context.Context, channelID, resourceID string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	err := g.srv.Channels.Stop(&calendar.Channel{Id: channelID, ResourceId: resourceID}).Context(ctx).Do()
	return classify(err)
}

func (g *googleAPI) RevokeCredential(ctx context.Context, token string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return apperr.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return apperr.Transient(fmt.Errorf("revoke returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoke returned %d", resp.StatusCode)
	}
	return nil
}

func fromGoogleEvent(item *calendar.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Status:      item.Status,
	}
	if item.ExtendedProperties != nil {
		ev.AppointmentID = item.ExtendedProperties.Private[tagKey]
	}
	if item.Start != nil {
		if item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				ev.Start = t.UTC()
			}
		} else if item.Start.Date != "" {
			ev.AllDay = true
			if t, err := time.Parse("2006-01-02", item.Start.Date); err == nil {
				ev.Start = t
			}
		}
	}
	if item.End != nil {
		if item.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				ev.End = t.UTC()
			}
		} else if item.End.Date != "" {
			ev.AllDay = true
			if t, err := time.Parse("2006-01-02", item.End.Date); err == nil {
				ev.End = t
			}
		}
	}
	return ev
}

func toGoogleEvent(ev Event) *calendar.Event {
	out := &calendar.Event{
		Id:          ev.ID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	if ev.AppointmentID != "" {
		out.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{tagKey: ev.AppointmentID},
		}
	}
	return out
}

// classify folds provider failures into the shared taxonomy: timeouts,
// network errors, 429 and 5xx are transient; 401/403 surface as expired
// authorization.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %w", apperr.ErrAuthExpired, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return apperr.Transient(err)
		}
		return err
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &nerr) {
		return apperr.Transient(err)
	}
	return err
}
