package services

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendo/calsync/internal/adapters/driven/storage/memory"
	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
)

// --- Mock implementations shared across the service tests ---

// stubTokens implements TokenSource with a fixed answer.
type stubTokens struct {
	token string
	err   error
	calls int
}

func (s *stubTokens) ValidAccessToken(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

// mockCalendarAPI implements driven.CalendarAPI with pluggable behaviour.
type mockCalendarAPI struct {
	mu stdsync.Mutex

	listFn      func(q driven.ListQuery) (*driven.EventPage, error)
	instancesFn func(eventID string) (*driven.EventPage, error)
	insertFn    func(event *driven.RemoteEvent) (string, error)
	deleteErr   error
	watchFn     func(channelID string) (*driven.WebhookRegistration, error)
	stopErr     error

	listCalls []driven.ListQuery
	inserted  []driven.RemoteEvent
	deleted   []string
	watched   []string
	stopped   []string
}

func (m *mockCalendarAPI) List(_ context.Context, _ string, query driven.ListQuery) (*driven.EventPage, error) {
	m.mu.Lock()
	m.listCalls = append(m.listCalls, query)
	m.mu.Unlock()
	if m.listFn == nil {
		return &driven.EventPage{}, nil
	}
	return m.listFn(query)
}

func (m *mockCalendarAPI) Instances(_ context.Context, _, eventID string, _, _ time.Time, _ int64) (*driven.EventPage, error) {
	if m.instancesFn == nil {
		return &driven.EventPage{}, nil
	}
	return m.instancesFn(eventID)
}

func (m *mockCalendarAPI) Insert(_ context.Context, _ string, event *driven.RemoteEvent) (string, error) {
	m.mu.Lock()
	m.inserted = append(m.inserted, *event)
	m.mu.Unlock()
	if m.insertFn == nil {
		return fmt.Sprintf("remote-%d", len(m.inserted)), nil
	}
	return m.insertFn(event)
}

func (m *mockCalendarAPI) Update(_ context.Context, _, _ string, _ *driven.RemoteEvent) error {
	return nil
}

func (m *mockCalendarAPI) Delete(_ context.Context, _, eventID string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, eventID)
	m.mu.Unlock()
	return m.deleteErr
}

func (m *mockCalendarAPI) Watch(_ context.Context, _, channelID, _ string, _ time.Time) (*driven.WebhookRegistration, error) {
	m.mu.Lock()
	m.watched = append(m.watched, channelID)
	m.mu.Unlock()
	if m.watchFn == nil {
		return &driven.WebhookRegistration{ResourceID: "res-1", Expiration: time.Now().Add(webhookTTL)}, nil
	}
	return m.watchFn(channelID)
}

func (m *mockCalendarAPI) Stop(_ context.Context, _, channelID, resourceID string) error {
	m.mu.Lock()
	m.stopped = append(m.stopped, channelID+"/"+resourceID)
	m.mu.Unlock()
	return m.stopErr
}

// timedItem builds a remote event spanning one hour from start.
func timedItem(id, title string, start time.Time) driven.RemoteEvent {
	return driven.RemoteEvent{
		ID:      id,
		Status:  "confirmed",
		Summary: title,
		Start:   driven.RemoteEventTime{DateTime: start.Format(time.RFC3339), TimeZone: "America/Sao_Paulo"},
		End:     driven.RemoteEventTime{DateTime: start.Add(time.Hour).Format(time.RFC3339), TimeZone: "America/Sao_Paulo"},
	}
}

func newSyncFixture(t *testing.T, conn domain.Connection, api *mockCalendarAPI) (*SyncEngine, *memory.ConnectionStore, *memory.EventStore) {
	t.Helper()
	connections := memory.NewConnectionStore()
	require.NoError(t, connections.Save(context.Background(), conn))
	events := memory.NewEventStore()
	engine := NewSyncEngine(connections, events, api, &stubTokens{token: "tok"})
	return engine, connections, events
}

func connectedConn(userID, cursor string) domain.Connection {
	return domain.Connection{
		UserID:       userID,
		Connected:    true,
		AccessToken:  "tok",
		RefreshToken: "rt",
		TokenExpiry:  time.Now().Add(time.Hour),
		SyncToken:    cursor,
	}
}

func TestPerformSync_FullSync_PaginatesAndStoresCursor(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			if q.PageToken == "" {
				return &driven.EventPage{
					Items:         []driven.RemoteEvent{timedItem("e1", "One", start), timedItem("e2", "Two", start.Add(time.Hour))},
					NextPageToken: "page-2",
				}, nil
			}
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{timedItem("e3", "Three", start.Add(2 * time.Hour))},
				NextSyncToken: "cursor-1",
			}, nil
		},
	}
	engine, connections, events := newSyncFixture(t, connectedConn("u1", ""), api)

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, result.FullSync)
	assert.Equal(t, 3, result.Imported)
	assert.Empty(t, result.Errors)

	conn, err := connections.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", conn.SyncToken)
	assert.False(t, conn.LastSyncAt.IsZero())

	stored, err := events.GetByExternalID(context.Background(), "u1", "e2")
	require.NoError(t, err)
	assert.Equal(t, "Two", stored.Title)
	assert.True(t, stored.Active)

	// Full queries carry the window and instance expansion, never a cursor.
	require.Len(t, api.listCalls, 2)
	first := api.listCalls[0]
	assert.Empty(t, first.SyncToken)
	assert.True(t, first.SingleEvents)
	assert.True(t, first.OrderByStartTime)
	assert.False(t, first.TimeMin.IsZero())
	assert.False(t, first.TimeMax.IsZero())
}

func TestPerformSync_DeltaSync_NeverCombinesCursorWithWindow(t *testing.T) {
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{NextSyncToken: "cursor-2"}, nil
		},
	}
	engine, _, _ := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)

	_, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, api.listCalls, 1)
	q := api.listCalls[0]
	assert.Equal(t, "cursor-1", q.SyncToken)
	assert.False(t, q.SingleEvents)
	assert.True(t, q.TimeMin.IsZero())
	assert.True(t, q.TimeMax.IsZero())
}

func TestPerformSync_DeltaSync_SecondRunIsIdempotent(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{timedItem("e1", "Standup", start)},
				NextSyncToken: "cursor-next",
			}, nil
		},
	}
	engine, _, _ := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)

	first, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	second, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Writes())
	assert.Equal(t, 1, second.Skipped)
}

func TestPerformSync_CursorInvalidated_SingleFullSyncFallback(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			if q.SyncToken != "" {
				return nil, &domain.RemoteError{Status: 410, Message: "Sync token is no longer valid"}
			}
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{timedItem("e1", "One", start)},
				NextSyncToken: "cursor-fresh",
			}, nil
		},
	}
	engine, connections, _ := newSyncFixture(t, connectedConn("u1", "cursor-stale"), api)

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, result.FullSync)
	assert.Equal(t, 1, result.Imported)

	conn, err := connections.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cursor-fresh", conn.SyncToken)

	// Exactly one cursor attempt, then exactly one windowed fallback.
	cursorQueries := 0
	for _, q := range api.listCalls {
		if q.SyncToken != "" {
			cursorQueries++
		}
	}
	assert.Equal(t, 1, cursorQueries)
	require.Len(t, api.listCalls, 2)
}

func TestPerformSync_CancelledWithoutLocalRow_NoWrite(t *testing.T) {
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{{ID: "gone", Status: "cancelled"}},
				NextSyncToken: "cursor-next",
			}, nil
		},
	}
	engine, _, _ := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Writes())
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestPerformSync_CancelledWithLocalRow_Deletes(t *testing.T) {
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{{ID: "e1", Status: "cancelled"}},
				NextSyncToken: "cursor-next",
			}, nil
		},
	}
	engine, _, events := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)
	require.NoError(t, events.Insert(context.Background(), &domain.Event{
		UserID: "u1", ExternalID: "e1", Title: "Old", Active: true,
	}))

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	_, err = events.GetByExternalID(context.Background(), "u1", "e1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPerformSync_AllDayItemSkipped(t *testing.T) {
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{
				Items: []driven.RemoteEvent{{
					ID:      "allday",
					Status:  "confirmed",
					Summary: "Holiday",
					Start:   driven.RemoteEventTime{Date: "2026-09-07"},
					End:     driven.RemoteEventTime{Date: "2026-09-08"},
				}},
				NextSyncToken: "cursor-next",
			}, nil
		},
	}
	engine, _, events := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Writes())

	_, err = events.GetByExternalID(context.Background(), "u1", "allday")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPerformSync_RecurringMaster_FetchesInstances(t *testing.T) {
	zone := time.FixedZone("-03", -3*60*60)
	start := time.Date(2026, 9, 7, 19, 0, 0, 0, zone)
	master := timedItem("m1", "Weekly", start)
	master.Recurrence = []string{"RRULE:FREQ=WEEKLY;BYDAY=MO,WE"}

	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{master},
				NextSyncToken: "cursor-next",
			}, nil
		},
		instancesFn: func(eventID string) (*driven.EventPage, error) {
			require.Equal(t, "m1", eventID)
			inst1 := timedItem("m1_1", "Weekly", start)
			inst1.RecurringEventID = "m1"
			inst2 := timedItem("m1_2", "Weekly", start.AddDate(0, 0, 2))
			inst2.RecurringEventID = "m1"
			return &driven.EventPage{Items: []driven.RemoteEvent{inst1, inst2}}, nil
		},
	}
	engine, _, events := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)

	stored, err := events.GetByExternalID(context.Background(), "u1", "m1")
	require.NoError(t, err)
	assert.True(t, stored.Recurring)
	assert.Contains(t, stored.RRule, "FREQ=WEEKLY")
	assert.Contains(t, stored.RRule, "BYHOUR=19")
	require.NotNil(t, stored.NextOccurrence)

	inst, err := events.GetByExternalID(context.Background(), "u1", "m1_2")
	require.NoError(t, err)
	assert.False(t, inst.Recurring)
}

func TestPerformSync_ItemFailureDoesNotAbortPass(t *testing.T) {
	good := timedItem("ok", "Fine", time.Now().Add(24*time.Hour))
	bad := driven.RemoteEvent{
		ID:     "broken",
		Status: "confirmed",
		Start:  driven.RemoteEventTime{DateTime: "not-a-time"},
		End:    driven.RemoteEventTime{DateTime: "not-a-time"},
	}
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{
				Items:         []driven.RemoteEvent{bad, good},
				NextSyncToken: "cursor-next",
			}, nil
		},
	}
	engine, _, events := newSyncFixture(t, connectedConn("u1", "cursor-1"), api)

	result, err := engine.PerformSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken")

	_, err = events.GetByExternalID(context.Background(), "u1", "ok")
	assert.NoError(t, err)
}

func TestPerformSync_PageFailurePropagates(t *testing.T) {
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return nil, &domain.RemoteError{Status: 500, Message: "backend error"}
		},
	}
	engine, _, _ := newSyncFixture(t, connectedConn("u1", ""), api)

	_, err := engine.PerformSync(context.Background(), "u1")
	require.Error(t, err)

	var remote *domain.RemoteError
	assert.ErrorAs(t, err, &remote)
}

func TestPerformSync_NotConnected(t *testing.T) {
	engine, _, _ := newSyncFixture(t, domain.Connection{UserID: "u1", Connected: false}, &mockCalendarAPI{})

	_, err := engine.PerformSync(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestManualSync_RateLimited(t *testing.T) {
	conn := connectedConn("u1", "")
	conn.LastSyncAt = time.Now().Add(-time.Minute)
	engine, _, _ := newSyncFixture(t, conn, &mockCalendarAPI{})

	_, err := engine.ManualSync(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrSyncTooSoon)
}

func TestManualSync_OutsideWindow_Syncs(t *testing.T) {
	conn := connectedConn("u1", "")
	conn.LastSyncAt = time.Now().Add(-10 * time.Minute)
	api := &mockCalendarAPI{
		listFn: func(q driven.ListQuery) (*driven.EventPage, error) {
			return &driven.EventPage{NextSyncToken: "cursor-1"}, nil
		},
	}
	engine, _, _ := newSyncFixture(t, conn, api)

	result, err := engine.ManualSync(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.FullSync)
}
