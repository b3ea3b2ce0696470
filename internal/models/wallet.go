package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID        uuid.UUID
	UserID    string
	Balance   decimal.Decimal
	PixKey    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
