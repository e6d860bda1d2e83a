package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"libra-pay/internal/domain"
)

type TransactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindByCode(ctx context.Context, code string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus) error
	// FindExpiredPending returns PENDING transactions whose deadline has
	// passed, oldest first, for the expiry sweeper.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error)
}

type transactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) TransactionRepo {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, user_id, borrow_request_id, transaction_code, status, amount, description, qr_code, expired_at, created_at, updated_at`

func (r *transactionRepo) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.UserID, t.BorrowRequestID, t.TransactionCode, t.Status, t.Amount,
		t.Description, t.QRCode, nullTime(t.ExpiredAt), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *transactionRepo) FindByCode(ctx context.Context, code string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_code = $1`, code)
	return scanTransaction(row)
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = now() WHERE id = $2`,
		status, id)
	return err
}

func (r *transactionRepo) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE status = $1 AND expired_at IS NOT NULL AND expired_at <= $2
		 ORDER BY expired_at ASC
		 LIMIT $3`,
		domain.TransactionPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row scannable) (*domain.Transaction, error) {
	var t domain.Transaction
	var expiredAt sql.NullTime
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.BorrowRequestID,
		&t.TransactionCode,
		&t.Status,
		&t.Amount,
		&t.Description,
		&t.QRCode,
		&expiredAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiredAt.Valid {
		t.ExpiredAt = &expiredAt.Time
	}
	return &t, nil
}

func scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
