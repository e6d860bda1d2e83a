package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"libra-pay/internal/domain"
)

// MockGateway is an in-memory gateway for cmd/simulate and tests. Orders are
// created PENDING; Settle and Expire drive them to terminal states the way a
// payer or the gateway's own timeout would.
type MockGateway struct {
	mu       sync.RWMutex
	next     int64
	statuses map[int64]domain.TransactionStatus
	// Resolved, when set, makes the next create call return an
	// already-resolved message instead of a payable link.
	Resolved string
	// TTL is copied into each link's ExpiredAt.
	TTL time.Duration
}

func NewMockGateway(ttl time.Duration) *MockGateway {
	return &MockGateway{
		next:     1000,
		statuses: make(map[int64]domain.TransactionStatus),
		TTL:      ttl,
	}
}

func (m *MockGateway) CreatePaymentLink(_ context.Context, req CreateLinkRequest) (*CreateLinkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Resolved != "" {
		msg := m.Resolved
		m.Resolved = ""
		return &CreateLinkResult{Message: msg}, nil
	}

	m.next++
	code := m.next
	m.statuses[code] = domain.TransactionPending
	expiredAt := time.Now().Add(m.TTL)
	return &CreateLinkResult{Link: &PaymentLink{
		OrderCode:       code,
		TransactionCode: fmt.Sprintf("MOCK-%d", code),
		QRCode:          fmt.Sprintf("qr://mock/%d", code),
		Description:     req.Description,
		ExpiredAt:       &expiredAt,
	}}, nil
}

func (m *MockGateway) CheckStatus(_ context.Context, orderCode int64) (domain.TransactionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[orderCode]
	if !ok {
		return "", ErrOrderNotFound
	}
	return st, nil
}

func (m *MockGateway) Cancel(_ context.Context, orderCode int64) error {
	return m.set(orderCode, domain.TransactionCancelled)
}

// Settle marks an order paid, as if the payer completed the QR flow.
func (m *MockGateway) Settle(orderCode int64) error {
	return m.set(orderCode, domain.TransactionPaid)
}

// Expire marks an order expired, as if its deadline passed gateway-side.
func (m *MockGateway) Expire(orderCode int64) error {
	return m.set(orderCode, domain.TransactionExpired)
}

func (m *MockGateway) set(orderCode int64, st domain.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.statuses[orderCode]
	if !ok {
		return ErrOrderNotFound
	}
	if cur.Terminal() {
		return nil
	}
	m.statuses[orderCode] = st
	return nil
}
