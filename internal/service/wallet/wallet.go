package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
)

// Service applies synchronous balance mutations with an attached ledger
// entry. Balances are never written outside of it.
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{
		storage: storage,
	}
}

// Create makes a wallet with zero balance for the user.
// One wallet per user: the unique constraint on user_id is the source
// of truth, a duplicate create returns apperrors.ErrWalletAlreadyExists.
func (s *Service) Create(ctx context.Context, userID string) (models.Wallet, error) {
	return s.storage.Wallet().CreateWallet(ctx, userID)
}

func (s *Service) Get(ctx context.Context, walletID uuid.UUID) (models.Wallet, error) {
	return s.storage.Wallet().GetWallet(ctx, walletID, false)
}

// AttachPixKey sets the wallet pix key. The key is unique across
// wallets: apperrors.ErrPixKeyTaken if another wallet holds it already.
func (s *Service) AttachPixKey(ctx context.Context, walletID uuid.UUID, pixKey string) (models.Wallet, error) {
	return s.storage.Wallet().SetPixKey(ctx, walletID, pixKey)
}

// Deposit increases the wallet balance and writes a confirmed ledger
// entry, atomically. The wallet row stays locked until commit.
func (s *Service) Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, apperrors.ErrAmountNotPositive
	}

	var wallet models.Wallet
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		_, err := store.Wallet().GetWallet(ctx, walletID, true)
		if err != nil {
			return err
		}

		wallet, err = store.Wallet().UpdateBalance(ctx, walletID, amount)
		if err != nil {
			return err
		}

		_, err = store.Transaction().CreateTransaction(ctx, newEntry(walletID, amount, models.TransactionTypeDeposit))
		return err
	})

	return wallet, err
}

// Withdraw decreases the wallet balance and writes a confirmed ledger
// entry with negative amount, atomically. Fails with an
// InsufficientBalanceError carrying the current balance if the wallet
// holds less than the requested amount.
func (s *Service) Withdraw(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, apperrors.ErrAmountNotPositive
	}

	var wallet models.Wallet
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		locked, err := store.Wallet().GetWallet(ctx, walletID, true)
		if err != nil {
			return err
		}

		if locked.Balance.LessThan(amount) {
			return &apperrors.InsufficientBalanceError{Balance: locked.Balance}
		}

		wallet, err = store.Wallet().UpdateBalance(ctx, walletID, amount.Neg())
		if err != nil {
			return err
		}

		_, err = store.Transaction().CreateTransaction(ctx, newEntry(walletID, amount.Neg(), models.TransactionTypeWithdraw))
		return err
	})

	return wallet, err
}

// ApplyConfirmedAmount adds an already validated signed amount to the
// wallet balance. Settlement only: the debit leg was validated when the
// transfer was initiated, so there is no balance check here. Runs on the
// caller's storage to join its unit of work.
func (s *Service) ApplyConfirmedAmount(ctx context.Context, store repository.Storage, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error) {
	return store.Wallet().UpdateBalance(ctx, walletID, amount)
}

// Balance returns the current wallet balance, or the balance as of the
// given time computed as the sum of confirmed ledger entries up to it.
func (s *Service) Balance(ctx context.Context, walletID uuid.UUID, at *time.Time) (decimal.Decimal, error) {
	wallet, err := s.storage.Wallet().GetWallet(ctx, walletID, false)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if at == nil {
		return wallet.Balance, nil
	}

	return s.storage.Transaction().SumConfirmed(ctx, walletID, *at)
}

// ListTransactions returns the wallet statement, newest first.
func (s *Service) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.Transaction, error) {
	_, err := s.storage.Wallet().GetWallet(ctx, walletID, false)
	if err != nil {
		return nil, err
	}

	return s.storage.Transaction().ListByWallet(ctx, walletID)
}

func newEntry(walletID uuid.UUID, amount decimal.Decimal, entryType string) models.Transaction {
	now := time.Now()

	return models.Transaction{
		ID:         uuid.New(),
		EndToEndID: uuid.NewString(),
		WalletID:   walletID,
		Amount:     amount,
		Type:       entryType,
		Status:     models.TransactionStatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
