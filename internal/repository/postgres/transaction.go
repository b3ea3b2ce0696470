package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
)

type TransactionRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, end_to_end_id, wallet_id, amount, type, status, pix_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, end_to_end_id, wallet_id, amount, type, status, pix_key, created_at, updated_at
`

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.EndToEndID, t.WalletID, t.Amount, t.Type, t.Status, t.PixKey, t.CreatedAt, t.UpdatedAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrTransactionAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getByEndToEndID = `-- name: GetByEndToEndID
SELECT id, end_to_end_id, wallet_id, amount, type, status, pix_key, created_at, updated_at FROM transactions
WHERE end_to_end_id = $1
`

func (r *TransactionRepo) GetByEndToEndID(ctx context.Context, endToEndID string) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, getByEndToEndID, endToEndID)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const setStatus = `-- name: SetStatus
UPDATE transactions
SET status = $2, updated_at = $3
WHERE end_to_end_id = $1
RETURNING id, end_to_end_id, wallet_id, amount, type, status, pix_key, created_at, updated_at
`

func (r *TransactionRepo) SetStatus(ctx context.Context, endToEndID string, status string) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, setStatus, endToEndID, status, time.Now())
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const listByWallet = `-- name: ListByWallet
SELECT id, end_to_end_id, wallet_id, amount, type, status, pix_key, created_at, updated_at FROM transactions
WHERE wallet_id = $1
ORDER BY created_at DESC
`

func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listByWallet, walletID)
	list, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return list, nil
}

const sumConfirmed = `-- name: SumConfirmed
SELECT COALESCE(SUM(amount), 0) FROM transactions
WHERE wallet_id = $1 AND status = $2 AND created_at <= $3
`

func (r *TransactionRepo) SumConfirmed(ctx context.Context, walletID uuid.UUID, until time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumConfirmed, walletID, models.TransactionStatusConfirmed, until).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.EndToEndID, &t.WalletID, &t.Amount, &t.Type, &t.Status, &t.PixKey, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
