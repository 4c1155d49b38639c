package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/agendo/calsync/internal/core/ports/driven"
)

// primaryCalendar is the only calendar this client touches.
const primaryCalendar = "primary"

// Ensure Client implements the interface.
var _ driven.CalendarAPI = (*Client)(nil)

// Client talks to the Google Calendar API for one calendar per user.
type Client struct {
	limiter *rate.Limiter
}

// NewClient creates a calendar client with the default rate limit.
func NewClient() *Client {
	return &Client{limiter: newLimiter()}
}

// service builds an API service bound to the caller's access token.
func (c *Client) service(ctx context.Context, token string) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, nil
}

// List fetches one page of the user's primary calendar.
func (c *Client) List(ctx context.Context, token string, query driven.ListQuery) (*driven.EventPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(primaryCalendar).Context(ctx).ShowDeleted(query.ShowDeleted)
	if query.SyncToken != "" {
		call = call.SyncToken(query.SyncToken)
	} else {
		if !query.TimeMin.IsZero() {
			call = call.TimeMin(query.TimeMin.Format(time.RFC3339))
		}
		if !query.TimeMax.IsZero() {
			call = call.TimeMax(query.TimeMax.Format(time.RFC3339))
		}
		if query.SingleEvents {
			call = call.SingleEvents(true)
			if query.OrderByStartTime {
				call = call.OrderBy("startTime")
			}
		}
	}
	if query.PageToken != "" {
		call = call.PageToken(query.PageToken)
	}
	if query.MaxResults > 0 {
		call = call.MaxResults(query.MaxResults)
	}

	res, err := call.Do()
	if err != nil {
		return nil, wrapError(err)
	}
	return pageFromResponse(res.Items, res.NextPageToken, res.NextSyncToken), nil
}

// Instances fetches the expanded instances of a recurring master.
func (c *Client) Instances(ctx context.Context, token, eventID string, timeMin, timeMax time.Time, max int64) (*driven.EventPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	call := svc.Events.Instances(primaryCalendar, eventID).Context(ctx).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		ShowDeleted(true)
	if max > 0 {
		call = call.MaxResults(max)
	}

	res, err := call.Do()
	if err != nil {
		return nil, wrapError(err)
	}
	return pageFromResponse(res.Items, res.NextPageToken, res.NextSyncToken), nil
}

// Insert creates an event on the primary calendar and returns its id.
func (c *Client) Insert(ctx context.Context, token string, event *driven.RemoteEvent) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(primaryCalendar, apiEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err)
	}
	return created.Id, nil
}

// Update rewrites a remote event.
func (c *Client) Update(ctx context.Context, token, eventID string, event *driven.RemoteEvent) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	_, err = svc.Events.Update(primaryCalendar, eventID, apiEvent(event)).Context(ctx).Do()
	return wrapError(err)
}

// Delete removes a remote event. An already-deleted event (404 or 410) is
// treated as success.
func (c *Client) Delete(ctx context.Context, token, eventID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	err = svc.Events.Delete(primaryCalendar, eventID).Context(ctx).Do()
	if status := statusOf(err); status == http.StatusNotFound || status == http.StatusGone {
		return nil
	}
	return wrapError(err)
}

// Watch registers a push-notification channel for the primary calendar.
func (c *Client) Watch(ctx context.Context, token, channelID, address string, expiration time.Time) (*driven.WebhookRegistration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	channel := &calendar.Channel{
		Id:         channelID,
		Type:       "web_hook",
		Address:    address,
		Expiration: expiration.UnixMilli(),
	}
	res, err := svc.Events.Watch(primaryCalendar, channel).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}
	return &driven.WebhookRegistration{
		ResourceID: res.ResourceId,
		Expiration: time.UnixMilli(res.Expiration),
	}, nil
}

// Stop cancels a push-notification channel.
func (c *Client) Stop(ctx context.Context, token, channelID, resourceID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	channel := &calendar.Channel{Id: channelID, ResourceId: resourceID}
	return wrapError(svc.Channels.Stop(channel).Context(ctx).Do())
}

func pageFromResponse(items []*calendar.Event, nextPage, nextSync string) *driven.EventPage {
	page := &driven.EventPage{
		Items:         make([]driven.RemoteEvent, 0, len(items)),
		NextPageToken: nextPage,
		NextSyncToken: nextSync,
	}
	for _, item := range items {
		page.Items = append(page.Items, remoteEvent(item))
	}
	return page
}

// remoteEvent converts an API event into the provider-neutral shape.
func remoteEvent(ev *calendar.Event) driven.RemoteEvent {
	out := driven.RemoteEvent{
		ID:               ev.Id,
		Status:           ev.Status,
		Summary:          ev.Summary,
		Description:      ev.Description,
		Recurrence:       ev.Recurrence,
		RecurringEventID: ev.RecurringEventId,
	}
	if ev.Start != nil {
		out.Start = driven.RemoteEventTime{
			DateTime: ev.Start.DateTime,
			Date:     ev.Start.Date,
			TimeZone: ev.Start.TimeZone,
		}
	}
	if ev.End != nil {
		out.End = driven.RemoteEventTime{
			DateTime: ev.End.DateTime,
			Date:     ev.End.Date,
			TimeZone: ev.End.TimeZone,
		}
	}
	if ev.Creator != nil {
		out.CreatorEmail = ev.Creator.Email
	}
	return out
}

// apiEvent converts the provider-neutral shape into an API event.
func apiEvent(event *driven.RemoteEvent) *calendar.Event {
	out := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.DateTime,
			Date:     event.Start.Date,
			TimeZone: event.Start.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.DateTime,
			Date:     event.End.Date,
			TimeZone: event.End.TimeZone,
		},
		Recurrence: event.Recurrence,
	}
	return out
}
