package models

import (
	"time"
)

// PixEvent is the idempotency record for one settlement notification.
// Created once when an event is first accepted, never mutated.
type PixEvent struct {
	ID         int64
	EventID    string
	EndToEndID string
	EventType  string
	OccurredAt time.Time
	CreatedAt  time.Time
}
