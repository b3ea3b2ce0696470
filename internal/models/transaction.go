package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit     = "DEPOSIT"
	TransactionTypeWithdraw    = "WITHDRAW"
	TransactionTypeTransferOut = "PIX_TRANSFER_OUT"
	TransactionTypeTransferIn  = "PIX_TRANSFER_IN"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusConfirmed = "CONFIRMED"
	TransactionStatusRejected  = "REJECTED"
)

// Transaction is a single signed ledger entry attached to one wallet.
// Amount is negative for debits and positive for credits.
// EndToEndID is unique across all entries and ties a transfer's debit
// and credit legs to the caller's idempotency key.
type Transaction struct {
	ID         uuid.UUID
	EndToEndID string
	WalletID   uuid.UUID
	Amount     decimal.Decimal
	Type       string
	Status     string
	PixKey     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ParseStatus validates a status value coming from the outside.
// Unknown values fail fast instead of being carried around as free text.
func ParseStatus(s string) (string, error) {
	switch strings.ToUpper(s) {
	case TransactionStatusPending:
		return TransactionStatusPending, nil
	case TransactionStatusConfirmed:
		return TransactionStatusConfirmed, nil
	case TransactionStatusRejected:
		return TransactionStatusRejected, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}
