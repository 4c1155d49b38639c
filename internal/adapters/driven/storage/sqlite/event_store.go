package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agendo/calsync/internal/core/domain"
)

// eventStore implements driven.EventStore. The sync-origin marker on
// written events is transient and never lands in a column.
type eventStore struct {
	store *Store
}

const eventColumns = `id, user_id, external_id, title, description, starts_at, ends_at, timezone,
	is_recurring, rrule, repeats_until, exdates, next_occurrence, creator_email,
	active, created_at, updated_at`

func (e *eventStore) GetByExternalID(ctx context.Context, userID, externalID string) (*domain.Event, error) {
	if externalID == "" {
		return nil, domain.ErrNotFound
	}
	row := e.store.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? AND external_id = ?`,
		userID, externalID)
	return scanEvent(row)
}

func (e *eventStore) Insert(ctx context.Context, event *domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now()

	_, err := e.store.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.UserID, event.ExternalID, event.Title, event.Description,
		timeArg(event.StartsAt), timeArg(event.EndsAt), event.Timezone,
		event.Recurring, event.RRule, timePtrArg(event.RepeatsUntil),
		marshalExDates(event.ExDates), timePtrArg(event.NextOccurrence),
		event.CreatorEmail, event.Active, timeArg(now), timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (e *eventStore) Update(ctx context.Context, event *domain.Event) error {
	res, err := e.store.db.ExecContext(ctx, `
		UPDATE events SET
			external_id = ?, title = ?, description = ?, starts_at = ?, ends_at = ?,
			timezone = ?, is_recurring = ?, rrule = ?, repeats_until = ?, exdates = ?,
			next_occurrence = ?, creator_email = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		event.ExternalID, event.Title, event.Description,
		timeArg(event.StartsAt), timeArg(event.EndsAt), event.Timezone,
		event.Recurring, event.RRule, timePtrArg(event.RepeatsUntil),
		marshalExDates(event.ExDates), timePtrArg(event.NextOccurrence),
		event.CreatorEmail, event.Active, timeArg(time.Now()),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (e *eventStore) DeleteByExternalID(ctx context.Context, userID, externalID string) error {
	if externalID == "" {
		return nil
	}
	_, err := e.store.db.ExecContext(ctx,
		`DELETE FROM events WHERE user_id = ? AND external_id = ?`, userID, externalID)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

func (e *eventStore) DeleteRemoteOrigin(ctx context.Context, userID string) (int, error) {
	res, err := e.store.db.ExecContext(ctx,
		`DELETE FROM events WHERE user_id = ? AND external_id != ''`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting synced events: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (e *eventStore) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]domain.Event, error) {
	rows, err := e.store.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE user_id = ? AND active = 1
		   AND (is_recurring = 1 OR (starts_at < ? AND ends_at > ?))
		 ORDER BY starts_at`,
		userID, timeArg(to), timeArg(from))
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (e *eventStore) ListUnpushed(ctx context.Context, userID string) ([]domain.Event, error) {
	rows, err := e.store.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE user_id = ? AND active = 1 AND external_id = ''
		 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing unpushed events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (e *eventStore) SetExternalID(ctx context.Context, eventID, externalID string) error {
	res, err := e.store.db.ExecContext(ctx,
		`UPDATE events SET external_id = ?, updated_at = ? WHERE id = ?`,
		externalID, timeArg(time.Now()), eventID)
	if err != nil {
		return fmt.Errorf("setting external id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeArg(*t)
}

func marshalExDates(dates []time.Time) string {
	if len(dates) == 0 {
		return "[]"
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.UTC().Format(time.RFC3339Nano))
	}
	raw, _ := json.Marshal(out)
	return string(raw)
}

func unmarshalExDates(raw string) []time.Time {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	var out []time.Time
	for _, v := range values {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func collectEvents(rows *sql.Rows) ([]domain.Event, error) {
	var result []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

func scanEvent(row scanner) (*domain.Event, error) {
	var event domain.Event
	var startsAt, endsAt, repeatsUntil, nextOccurrence sql.NullString
	var createdAt, updatedAt sql.NullString
	var exdates string

	err := row.Scan(
		&event.ID, &event.UserID, &event.ExternalID, &event.Title, &event.Description,
		&startsAt, &endsAt, &event.Timezone,
		&event.Recurring, &event.RRule, &repeatsUntil, &exdates, &nextOccurrence,
		&event.CreatorEmail, &event.Active, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	event.StartsAt = parseTime(startsAt)
	event.EndsAt = parseTime(endsAt)
	event.CreatedAt = parseTime(createdAt)
	event.UpdatedAt = parseTime(updatedAt)
	if t := parseTime(repeatsUntil); !t.IsZero() {
		event.RepeatsUntil = &t
	}
	if t := parseTime(nextOccurrence); !t.IsZero() {
		event.NextOccurrence = &t
	}
	event.ExDates = unmarshalExDates(exdates)
	return &event, nil
}
