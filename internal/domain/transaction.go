package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionPaid      TransactionStatus = "PAID"
	TransactionExpired   TransactionStatus = "EXPIRED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

// Terminal reports whether the status is settled, i.e. anything past PENDING.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionPaid || s == TransactionExpired || s == TransactionCancelled
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionPaid, TransactionExpired, TransactionCancelled:
		return true
	}
	return false
}

// Transaction is a snapshot of a payment issued by the gateway for a borrow
// request. It is read-only to the settlement watcher; a retry creates a new
// record rather than mutating this one.
type Transaction struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	BorrowRequestID int64
	TransactionCode string
	Status          TransactionStatus
	Amount          float64
	Description     string
	QRCode          string
	ExpiredAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
