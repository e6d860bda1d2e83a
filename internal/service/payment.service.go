package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"libra-pay/internal/domain"
	"libra-pay/internal/hub"
	"libra-pay/internal/infrastructure/payment"
	"libra-pay/internal/repo"
)

var (
	// ErrAttemptInFlight means a create call for the same borrow request is
	// still outstanding; the caller should not retry until it returns.
	ErrAttemptInFlight     = errors.New("service: payment attempt already in flight")
	ErrTransactionNotFound = errors.New("service: transaction not found")
)

// AttemptResult is the outcome of a creation request: either a payable
// session, or a message saying the request was already resolved and nothing
// was created.
type AttemptResult struct {
	Transaction *domain.Transaction
	Session     *domain.PaymentSession
	Message     string
}

type PaymentService interface {
	CreateAttempt(ctx context.Context, userID uuid.UUID, borrowRequestID int64, amount float64, description string) (*AttemptResult, error)
	GetTransaction(ctx context.Context, code string) (*domain.Transaction, error)
	// ApplyStatus records a status change pushed by the gateway and fans it
	// out to the owner's open hub connections.
	ApplyStatus(ctx context.Context, code string, status domain.TransactionStatus) error
}

type paymentService struct {
	db        *sql.DB
	txRepo    repo.TransactionRepo
	gateway   payment.Gateway
	publisher hub.StatusPublisher
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewPaymentService(
	db *sql.DB,
	txRepo repo.TransactionRepo,
	gateway payment.Gateway,
	publisher hub.StatusPublisher,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		db:        db,
		txRepo:    txRepo,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		inflight:  make(map[int64]struct{}),
	}
}

func (s *paymentService) CreateAttempt(ctx context.Context, userID uuid.UUID, borrowRequestID int64, amount float64, description string) (*AttemptResult, error) {
	if !s.acquire(borrowRequestID) {
		return nil, ErrAttemptInFlight
	}
	defer s.release(borrowRequestID)

	result, err := s.gateway.CreatePaymentLink(ctx, payment.CreateLinkRequest{
		BorrowRequestID: borrowRequestID,
		UserID:          userID,
		Amount:          amount,
		Description:     description,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	if result.Link == nil {
		// Nothing left to pay; no transaction is created.
		s.logger.Info("payment request already resolved",
			zap.Int64("borrow_request_id", borrowRequestID),
			zap.String("message", result.Message))
		return &AttemptResult{Message: result.Message}, nil
	}

	now := time.Now()
	record := &domain.Transaction{
		ID:              uuid.New(),
		UserID:          userID,
		BorrowRequestID: borrowRequestID,
		TransactionCode: result.Link.TransactionCode,
		Status:          domain.TransactionPending,
		Amount:          amount,
		Description:     result.Link.Description,
		QRCode:          result.Link.QRCode,
		ExpiredAt:       result.Link.ExpiredAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.txRepo.Create(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &AttemptResult{
		Transaction: record,
		Session: &domain.PaymentSession{
			OrderCode:   result.Link.OrderCode,
			QRCode:      result.Link.QRCode,
			Description: result.Link.Description,
			ExpiredAt:   result.Link.ExpiredAt,
		},
	}, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, code string) (*domain.Transaction, error) {
	record, err := s.txRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrTransactionNotFound
	}
	return record, nil
}

func (s *paymentService) ApplyStatus(ctx context.Context, code string, status domain.TransactionStatus) error {
	if status == domain.TransactionPending {
		return nil // cannot regress a further-along state
	}

	record, err := s.txRepo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrTransactionNotFound
	}

	if !record.Status.Terminal() {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := s.txRepo.UpdateStatus(ctx, tx, record.ID, status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	// Push even when the record was already terminal: listeners get the
	// latest outcome, the reducer keeps the transition idempotent.
	if err := s.publisher.PublishStatus(ctx, record.UserID, status); err != nil {
		s.logger.Warn("status publish failed",
			zap.String("transaction_code", code), zap.Error(err))
	}
	return nil
}

func (s *paymentService) acquire(borrowRequestID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[borrowRequestID]; busy {
		return false
	}
	s.inflight[borrowRequestID] = struct{}{}
	return true
}

func (s *paymentService) release(borrowRequestID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, borrowRequestID)
}
