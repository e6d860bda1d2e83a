package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"libra-pay/internal/domain"
)

var (
	// ErrMalformedResponse means the gateway answered success but carried
	// neither payment data nor a resolution message.
	ErrMalformedResponse = errors.New("payment: malformed gateway response")
	ErrOrderNotFound     = errors.New("payment: order not found")
)

type CreateLinkRequest struct {
	BorrowRequestID int64
	UserID          uuid.UUID
	Amount          float64
	Description     string
}

// PaymentLink is a payable attempt issued by the gateway.
type PaymentLink struct {
	OrderCode       int64
	TransactionCode string
	QRCode          string
	Description     string
	ExpiredAt       *time.Time
}

// CreateLinkResult is one of two success shapes: a payable link, or a
// message saying there was nothing left to pay.
type CreateLinkResult struct {
	Link    *PaymentLink
	Message string
}

type Gateway interface {
	CreatePaymentLink(ctx context.Context, req CreateLinkRequest) (*CreateLinkResult, error)
	CheckStatus(ctx context.Context, orderCode int64) (domain.TransactionStatus, error)
	Cancel(ctx context.Context, orderCode int64) error
}
