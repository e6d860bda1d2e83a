package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"libra-pay/internal/auth"
	"libra-pay/internal/domain"
	"libra-pay/internal/hub"
	"libra-pay/internal/service"
)

var testSecret = []byte("test-secret")

type fakePayments struct {
	createResult *service.AttemptResult
	createErr    error
	record       *domain.Transaction
	applied      []domain.TransactionStatus
}

func (f *fakePayments) CreateAttempt(_ context.Context, _ uuid.UUID, _ int64, _ float64, _ string) (*service.AttemptResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResult, nil
}

func (f *fakePayments) GetTransaction(_ context.Context, code string) (*domain.Transaction, error) {
	if f.record == nil || f.record.TransactionCode != code {
		return nil, service.ErrTransactionNotFound
	}
	return f.record, nil
}

func (f *fakePayments) ApplyStatus(_ context.Context, _ string, status domain.TransactionStatus) error {
	f.applied = append(f.applied, status)
	return nil
}

func newTestServer(t *testing.T, payments service.PaymentService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New(nil, payments, hub.New(zap.NewNop()), testSecret, "hook-key", zap.NewNop())
}

func authHeader(t *testing.T) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, auth.Credential{UserID: uuid.New(), Role: "employee"})
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestCreatePaymentReturnsSession(t *testing.T) {
	t.Parallel()

	expiredAt := time.Now().Add(10 * time.Minute).UTC()
	payments := &fakePayments{createResult: &service.AttemptResult{
		Transaction: &domain.Transaction{TransactionCode: "TX-1"},
		Session: &domain.PaymentSession{
			OrderCode:   101,
			QRCode:      "qr://pay/101",
			Description: "borrow request #5",
			ExpiredAt:   &expiredAt,
		},
	}}
	srv := newTestServer(t, payments)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments",
		strings.NewReader(`{"borrowRequestId": 5, "amount": 20000, "description": "borrow request #5"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader(t))
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"qrCode":"qr://pay/101"`)
	assert.Contains(t, w.Body.String(), `"transactionCode":"TX-1"`)
}

func TestCreatePaymentAlreadyResolved(t *testing.T) {
	t.Parallel()

	payments := &fakePayments{createResult: &service.AttemptResult{Message: "nothing left to pay"}}
	srv := newTestServer(t, payments)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments",
		strings.NewReader(`{"borrowRequestId": 5, "amount": 20000}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader(t))
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nothing left to pay")
}

func TestCreatePaymentInFlightConflict(t *testing.T) {
	t.Parallel()

	payments := &fakePayments{createErr: service.ErrAttemptInFlight}
	srv := newTestServer(t, payments)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments",
		strings.NewReader(`{"borrowRequestId": 5, "amount": 20000}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader(t))
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreatePaymentRequiresAuth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakePayments{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments",
		strings.NewReader(`{"borrowRequestId": 5, "amount": 20000}`))
	req.Header.Set("Content-Type", "application/json")
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePaymentValidatesBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakePayments{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments",
		strings.NewReader(`{"amount": -5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader(t))
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTransaction(t *testing.T) {
	t.Parallel()

	payments := &fakePayments{record: &domain.Transaction{
		TransactionCode: "TX-7",
		Status:          domain.TransactionPaid,
		Description:     "borrow request #7",
	}}
	srv := newTestServer(t, payments)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/transactions/TX-7", nil)
	req.Header.Set("Authorization", authHeader(t))
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"transactionStatus":"PAID"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/transactions/TX-404", nil)
	req.Header.Set("Authorization", authHeader(t))
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookAppliesStatus(t *testing.T) {
	t.Parallel()

	payments := &fakePayments{}
	srv := newTestServer(t, payments)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/gateway/webhook",
		strings.NewReader(`{"transactionCode": "TX-1", "status": "PAID"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", "hook-key")
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.TransactionStatus{domain.TransactionPaid}, payments.applied)
}

func TestWebhookRejectsBadKeyAndStatus(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakePayments{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/gateway/webhook",
		strings.NewReader(`{"transactionCode": "TX-1", "status": "PAID"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", "wrong")
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/gateway/webhook",
		strings.NewReader(`{"transactionCode": "TX-1", "status": "ON_HOLD"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", "hook-key")
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
