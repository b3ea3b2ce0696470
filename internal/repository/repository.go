package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/models"
)

// Wallet repository interface
type WalletRepo interface {
	// Create wallet with zero balance for the user
	// If the user already has a wallet has to return apperrors.ErrWalletAlreadyExists
	CreateWallet(ctx context.Context, userID string) (models.Wallet, error)

	// Get wallet by id or by pix key
	// If forUpdate is true the row is read with an exclusive lock that is
	// held until the enclosing transaction ends
	// If wallet not found must return apperrors.ErrWalletNotFound
	GetWallet(ctx context.Context, walletID uuid.UUID, forUpdate bool) (models.Wallet, error)
	GetWalletByPixKey(ctx context.Context, pixKey string, forUpdate bool) (models.Wallet, error)

	// Attach pix key to the wallet
	// If wallet not found must return apperrors.ErrWalletNotFound
	// If the key belongs to a different wallet must return apperrors.ErrPixKeyTaken
	SetPixKey(ctx context.Context, walletID uuid.UUID, pixKey string) (models.Wallet, error)

	// Add signed delta to the wallet balance and return the updated wallet
	// The update itself takes the row's exclusive lock
	// If the balance would go negative must return apperrors.ErrBalanceInsufficient
	UpdateBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal) (models.Wallet, error)
}

// Transaction (ledger entry) repository interface
type TransactionRepo interface {
	// Create ledger entry
	// If an entry with the same end to end id exists must return
	// apperrors.ErrTransactionAlreadyExists
	CreateTransaction(ctx context.Context, transaction models.Transaction) (models.Transaction, error)

	// Get entry by end to end id
	// If not found must return apperrors.ErrTransactionNotFound
	GetByEndToEndID(ctx context.Context, endToEndID string) (models.Transaction, error)

	// Set entry status and bump updated_at
	SetStatus(ctx context.Context, endToEndID string, status string) (models.Transaction, error)

	// List wallet entries, newest first
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.Transaction, error)

	// Sum of confirmed entry amounts for the wallet up to the given time
	SumConfirmed(ctx context.Context, walletID uuid.UUID, until time.Time) (decimal.Decimal, error)
}

// PixEvent repository interface
type PixEventRepo interface {
	// Create event record, first writer wins
	// If event id was already recorded must return apperrors.ErrEventAlreadyExists
	CreateEvent(ctx context.Context, event models.PixEvent) (models.PixEvent, error)

	// Get event by external event id
	// If not found must return apperrors.ErrEventNotFound
	GetEvent(ctx context.Context, eventID string) (models.PixEvent, error)
}

// Storage aggregates repositories and runs them in one unit of work
type Storage interface {
	Wallet() WalletRepo
	Transaction() TransactionRepo
	PixEvent() PixEventRepo

	// Run fn in a db transaction: commit on nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
