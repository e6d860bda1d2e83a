package worker

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"libra-pay/internal/domain"
	"libra-pay/internal/hub"
	"libra-pay/internal/repo"
)

const sweepBatchSize = 100

// ExpirySweeper is the server-side fallback for clients that never hear a
// status event: PENDING transactions past their deadline are marked EXPIRED
// and the change is pushed through the hub.
type ExpirySweeper struct {
	db        *sql.DB
	txRepo    repo.TransactionRepo
	publisher hub.StatusPublisher
	interval  time.Duration
	logger    *zap.Logger
}

func NewExpirySweeper(
	db *sql.DB,
	txRepo repo.TransactionRepo,
	publisher hub.StatusPublisher,
	interval time.Duration,
	logger *zap.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		db:        db,
		txRepo:    txRepo,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry sweeper started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) error {
	overdue, err := w.txRepo.FindExpiredPending(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}

	w.logger.Info("expiring overdue transactions", zap.Int("count", len(overdue)))

	for _, record := range overdue {
		if err := w.expire(ctx, &record); err != nil {
			w.logger.Warn("failed to expire transaction",
				zap.String("transaction_code", record.TransactionCode), zap.Error(err))
			continue // next sweep picks it up again
		}
	}
	return nil
}

func (w *ExpirySweeper) expire(ctx context.Context, record *domain.Transaction) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := w.txRepo.UpdateStatus(ctx, tx, record.ID, domain.TransactionExpired); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := w.publisher.PublishStatus(ctx, record.UserID, domain.TransactionExpired); err != nil {
		w.logger.Warn("expiry publish failed",
			zap.String("transaction_code", record.TransactionCode), zap.Error(err))
	}
	return nil
}
