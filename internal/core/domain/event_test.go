package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Pushed(t *testing.T) {
	assert.False(t, (&Event{}).Pushed())
	assert.True(t, (&Event{ExternalID: "abc123"}).Pushed())
}

func TestEvent_Duration(t *testing.T) {
	start := time.Date(2026, 3, 2, 19, 0, 0, 0, time.FixedZone("", -3*60*60))

	e := Event{StartsAt: start, EndsAt: start.Add(time.Hour)}
	assert.Equal(t, time.Hour, e.Duration())

	// Open-ended and inverted spans fall back to fifteen minutes.
	open := Event{StartsAt: start, EndsAt: start}
	assert.Equal(t, 15*time.Minute, open.Duration())

	inverted := Event{StartsAt: start, EndsAt: start.Add(-time.Hour)}
	assert.Equal(t, 15*time.Minute, inverted.Duration())
}

func TestNotification_Valid(t *testing.T) {
	tests := []struct {
		name   string
		n      Notification
		expect bool
	}{
		{"both present", Notification{ChannelID: "ch", ResourceID: "res"}, true},
		{"missing resource", Notification{ChannelID: "ch"}, false},
		{"missing channel", Notification{ResourceID: "res"}, false},
		{"empty", Notification{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.n.Valid())
		})
	}
}

func TestNotification_IsHandshake(t *testing.T) {
	assert.True(t, (&Notification{ResourceState: ResourceStateSync}).IsHandshake())
	assert.False(t, (&Notification{ResourceState: ResourceStateExists}).IsHandshake())
}

func TestSyncResult_Add(t *testing.T) {
	r := SyncResult{Imported: 2, Skipped: 1}
	r.Add(&SyncResult{Imported: 3, Deleted: 1, FullSync: true, Errors: []string{"event x: boom"}})

	assert.Equal(t, 5, r.Imported)
	assert.Equal(t, 1, r.Deleted)
	assert.Equal(t, 1, r.Skipped)
	assert.True(t, r.FullSync)
	assert.Len(t, r.Errors, 1)
	assert.Equal(t, 6, r.Writes())

	// Adding nil is a no-op.
	r.Add(nil)
	assert.Equal(t, 5, r.Imported)
}
