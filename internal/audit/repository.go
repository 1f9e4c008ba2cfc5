package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListParams filters a window of audit_logs, newest first.
type ListParams struct {
	From   time.Time
	To     time.Time
	Actor  *uuid.UUID
	Action string
	Module string
	Offset int
	Limit  int
}

// Repository persists audit events in PostgreSQL. It is both the direct Sink
// and the read side of the audit log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts the event as a single statement. Re-appending an event
// with a known ID is a no-op.
func (r *Repository) Append(ctx context.Context, event Event) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	details, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("audit: encode detail: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, action, module, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.ActorID, event.Action, event.Module, details, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// ListEvents returns events matching params ordered by occurred_at descending.
func (r *Repository) ListEvents(ctx context.Context, params ListParams) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, action, module, details, occurred_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		  AND ($2::timestamptz IS NULL OR occurred_at < $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
		  AND ($4::text IS NULL OR action = $4)
		  AND ($5::text IS NULL OR module = $5)
		ORDER BY occurred_at DESC, id
		OFFSET $6 LIMIT $7`,
		optionalTime(params.From), optionalTime(params.To), params.Actor,
		optionalText(params.Action), optionalText(params.Module),
		params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			event   Event
			actorID pgtype.UUID
			raw     []byte
		)
		if err := rows.Scan(&event.ID, &actorID, &event.Action, &event.Module, &raw, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		if actorID.Valid {
			id := uuid.UUID(actorID.Bytes)
			event.ActorID = &id
		}
		event.Detail = Detail{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &event.Detail); err != nil {
				return nil, fmt.Errorf("audit: decode detail: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
