package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrWalletAlreadyExists = errors.New("user already has a wallet")
	ErrWalletNotFound      = errors.New("wallet not found")

	ErrPixKeyTaken = errors.New("pix key already attached to another wallet")

	ErrTransactionAlreadyExists = errors.New("transaction with end to end id already exists")
	ErrTransactionNotFound      = errors.New("transaction not found")

	ErrEventAlreadyExists = errors.New("pix event already processed")
	ErrEventNotFound      = errors.New("pix event not found")

	ErrBalanceInsufficient = errors.New("insufficient balance")
	ErrAmountNotPositive   = errors.New("amount must be positive")
)

// InsufficientBalanceError carries the wallet balance at the moment the
// operation was refused. Matches ErrBalanceInsufficient with errors.Is.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: current balance is %s", e.Balance.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrBalanceInsufficient
}
