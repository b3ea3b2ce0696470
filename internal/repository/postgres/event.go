package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
)

type PixEventRepo struct {
	DB DBTX
}

const createEvent = `-- name: CreateEvent
INSERT INTO pix_events (event_id, end_to_end_id, event_type, occurred_at, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, event_id, end_to_end_id, event_type, occurred_at, created_at
`

// CreateEvent records a settlement event, first writer wins.
// The unique constraint on event_id is the deduplication arbiter.
func (r *PixEventRepo) CreateEvent(ctx context.Context, e models.PixEvent) (models.PixEvent, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createEvent, e.EventID, e.EndToEndID, e.EventType, e.OccurredAt, createdAt)
	created, err := pgx.CollectOneRow(rows, rowToEvent)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrEventAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getEvent = `-- name: GetEvent
SELECT id, event_id, end_to_end_id, event_type, occurred_at, created_at FROM pix_events
WHERE event_id = $1
`

func (r *PixEventRepo) GetEvent(ctx context.Context, eventID string) (models.PixEvent, error) {
	rows, _ := r.DB.Query(ctx, getEvent, eventID)
	e, err := pgx.CollectOneRow(rows, rowToEvent)

	switch {
	case err == nil:
		return e, nil
	case errors.Is(err, pgx.ErrNoRows):
		return e, apperrors.ErrEventNotFound
	default:
		return e, fmt.Errorf("db error: %w", err)
	}
}

func rowToEvent(row pgx.CollectableRow) (models.PixEvent, error) {
	var e models.PixEvent
	err := row.Scan(&e.ID, &e.EventID, &e.EndToEndID, &e.EventType, &e.OccurredAt, &e.CreatedAt)
	return e, err
}
