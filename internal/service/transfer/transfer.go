package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
)

// A transfer's debit and credit legs share the caller's idempotency key
// namespaced by direction, so both end to end ids stay unique.
const (
	debitPrefix  = "OUT:"
	creditPrefix = "IN:"
)

type walletService interface {
	ApplyConfirmedAmount(ctx context.Context, store repository.Storage, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error)
}

// Service runs the two phase transfer protocol: initiate writes the
// pending entry pair, settle reacts to the external settlement feed.
type Service struct {
	storage       repository.Storage
	walletService walletService
	logger        logger.Logger
}

func NewService(storage repository.Storage, walletService walletService, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Service{
		storage:       storage,
		walletService: walletService,
		logger:        l,
	}
}

type Result struct {
	EndToEndID string
	Status     string
}

// Event is a settlement notification from the external feed.
type Event struct {
	EventID    string
	EndToEndID string
	Outcome    string
	OccurredAt time.Time
}

// Initiate starts a transfer: validates the source balance and writes
// the pending debit/credit pair. Balances are not touched here, the
// earmarked amount moves only when the transfer settles confirmed.
//
// Calling again with the same idempotency key returns the current
// status of the existing transfer without creating anything.
func (s *Service) Initiate(ctx context.Context, idempotencyKey string, fromWalletID uuid.UUID, toPixKey string, amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, apperrors.ErrAmountNotPositive
	}

	l := s.logger.With(
		"idempotency_key", idempotencyKey,
		"from_wallet_id", fromWalletID,
		"to_pix_key", toPixKey,
		"amount", amount,
	)

	var result Result
	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		existing, err := store.Transaction().GetByEndToEndID(ctx, debitPrefix+idempotencyKey)
		switch {
		case err == nil:
			l.Info("Transfer already initiated, returning existing status", "status", existing.Status)
			result = Result{EndToEndID: idempotencyKey, Status: existing.Status}
			return nil
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			// First time this key is seen, proceed
		default:
			return err
		}

		// Lock the source row so the balance check stays valid until the
		// entry pair is committed. The destination needs no lock, only a
		// consistent read, so a single exclusive lock is held per call.
		from, err := store.Wallet().GetWallet(ctx, fromWalletID, true)
		if err != nil {
			return err
		}

		to, err := store.Wallet().GetWalletByPixKey(ctx, toPixKey, false)
		if err != nil {
			return err
		}

		if from.Balance.LessThan(amount) {
			l.Warn("Insufficient balance for transfer", "balance", from.Balance)
			return &apperrors.InsufficientBalanceError{Balance: from.Balance}
		}

		now := time.Now()

		_, err = store.Transaction().CreateTransaction(ctx, models.Transaction{
			ID:         uuid.New(),
			EndToEndID: debitPrefix + idempotencyKey,
			WalletID:   from.ID,
			Amount:     amount.Neg(),
			Type:       models.TransactionTypeTransferOut,
			Status:     models.TransactionStatusPending,
			PixKey:     toPixKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}

		_, err = store.Transaction().CreateTransaction(ctx, models.Transaction{
			ID:         uuid.New(),
			EndToEndID: creditPrefix + idempotencyKey,
			WalletID:   to.ID,
			Amount:     amount,
			Type:       models.TransactionTypeTransferIn,
			Status:     models.TransactionStatusPending,
			PixKey:     toPixKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}

		l.Info("Transfer initiated")
		result = Result{EndToEndID: idempotencyKey, Status: models.TransactionStatusPending}
		return nil
	})

	// A concurrent call with the same key won the insert race. The unique
	// constraint on end_to_end_id is the arbiter: re-read the winner's
	// entry and return its status.
	if errors.Is(err, apperrors.ErrTransactionAlreadyExists) {
		l.Info("Lost transfer initiation race, returning winner's status")
		existing, err := s.storage.Transaction().GetByEndToEndID(ctx, debitPrefix+idempotencyKey)
		if err != nil {
			return Result{}, err
		}

		return Result{EndToEndID: idempotencyKey, Status: existing.Status}, nil
	}

	return result, err
}

// Settle applies one settlement event to the transfer it references.
//
// Events are deduplicated by event id, first writer wins: a repeated
// event id is a silent no-op regardless of its declared outcome. A
// transfer already in a terminal state never changes again and never
// moves balances a second time, the event is recorded and ignored.
func (s *Service) Settle(ctx context.Context, event Event) error {
	outcome, err := models.ParseStatus(event.Outcome)
	if err != nil {
		return err
	}
	if outcome == models.TransactionStatusPending {
		return fmt.Errorf("settlement outcome must be terminal, got %q", event.Outcome)
	}

	l := s.logger.With(
		"event_id", event.EventID,
		"end_to_end_id", event.EndToEndID,
		"outcome", outcome,
	)

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		_, err := store.PixEvent().CreateEvent(ctx, models.PixEvent{
			EventID:    event.EventID,
			EndToEndID: event.EndToEndID,
			EventType:  outcome,
			OccurredAt: event.OccurredAt,
		})
		if err != nil {
			return err
		}

		debit, err := store.Transaction().GetByEndToEndID(ctx, debitPrefix+event.EndToEndID)
		if err != nil {
			return err
		}

		credit, err := store.Transaction().GetByEndToEndID(ctx, creditPrefix+event.EndToEndID)
		if err != nil {
			return err
		}

		// State machine guard: only a pending pair may settle. A terminal
		// pair stays as is, the event record still commits so the same
		// event id is never reconsidered.
		if debit.Status != models.TransactionStatusPending || credit.Status != models.TransactionStatusPending {
			l.Warn("Transfer already settled, ignoring event",
				"debit_status", debit.Status,
				"credit_status", credit.Status,
			)
			return nil
		}

		if _, err := store.Transaction().SetStatus(ctx, debit.EndToEndID, outcome); err != nil {
			return err
		}
		if _, err := store.Transaction().SetStatus(ctx, credit.EndToEndID, outcome); err != nil {
			return err
		}

		if outcome == models.TransactionStatusRejected {
			l.Info("Transfer rejected, balances unchanged")
			return nil
		}

		// Apply both legs inside the same unit of work, locking wallet
		// rows in stable id order so concurrent settlements touching the
		// same wallets cannot deadlock.
		first, second := debit, credit
		if bytes.Compare(second.WalletID[:], first.WalletID[:]) < 0 {
			first, second = second, first
		}

		if _, err := s.walletService.ApplyConfirmedAmount(ctx, store, first.WalletID, first.Amount); err != nil {
			return err
		}
		if _, err := s.walletService.ApplyConfirmedAmount(ctx, store, second.WalletID, second.Amount); err != nil {
			return err
		}

		l.Info("Transfer confirmed, balances updated")
		return nil
	})

	if errors.Is(err, apperrors.ErrEventAlreadyExists) {
		l.Info("Event already processed, ignoring")
		return nil
	}

	return err
}
