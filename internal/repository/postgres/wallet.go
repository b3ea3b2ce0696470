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

type WalletRepo struct {
	DB DBTX
}

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
VALUES ($1, $2, 0, $3, $3)
RETURNING id, user_id, balance, pix_key, created_at, updated_at
`

func (r *WalletRepo) CreateWallet(ctx context.Context, userID string) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, createWallet, uuid.New(), userID, time.Now())
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return wallet, apperrors.ErrWalletAlreadyExists
		}

		return wallet, fmt.Errorf("db error: %w", err)
	}

	return wallet, nil
}

const getWallet = `-- name: GetWallet
SELECT id, user_id, balance, pix_key, created_at, updated_at FROM wallets
WHERE id = $1
`

func (r *WalletRepo) GetWallet(ctx context.Context, walletID uuid.UUID, forUpdate bool) (models.Wallet, error) {
	query := getWallet
	if forUpdate {
		query += "FOR UPDATE\n"
	}

	rows, _ := r.DB.Query(ctx, query, walletID)
	return collectWallet(rows)
}

const getWalletByPixKey = `-- name: GetWalletByPixKey
SELECT id, user_id, balance, pix_key, created_at, updated_at FROM wallets
WHERE pix_key = $1
`

func (r *WalletRepo) GetWalletByPixKey(ctx context.Context, pixKey string, forUpdate bool) (models.Wallet, error) {
	query := getWalletByPixKey
	if forUpdate {
		query += "FOR UPDATE\n"
	}

	rows, _ := r.DB.Query(ctx, query, pixKey)
	return collectWallet(rows)
}

const setPixKey = `-- name: SetPixKey
UPDATE wallets
SET pix_key = $2, updated_at = $3
WHERE id = $1
RETURNING id, user_id, balance, pix_key, created_at, updated_at
`

func (r *WalletRepo) SetPixKey(ctx context.Context, walletID uuid.UUID, pixKey string) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, setPixKey, walletID, pixKey, time.Now())
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return wallet, apperrors.ErrPixKeyTaken
		}

		return wallet, fmt.Errorf("db error: %w", err)
	}
}

const updateBalance = `-- name: UpdateBalance
UPDATE wallets
SET balance = balance + $2, updated_at = $3
WHERE id = $1
RETURNING id, user_id, balance, pix_key, created_at, updated_at
`

// UpdateBalance adds the signed delta to the wallet balance.
// The UPDATE takes the row's exclusive lock for the rest of the
// enclosing transaction, so concurrent mutations of one wallet are
// totally ordered. The balance check constraint is the backstop: any
// delta that would make the balance negative fails here even if the
// caller's validation raced.
func (r *WalletRepo) UpdateBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, updateBalance, walletID, delta, time.Now())
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return wallet, apperrors.ErrBalanceInsufficient
		}

		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func collectWallet(rows pgx.Rows) (models.Wallet, error) {
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.PixKey, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}
