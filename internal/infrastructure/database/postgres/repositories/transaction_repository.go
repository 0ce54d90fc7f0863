package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/internal/domain/repositories"
)

// pgUniqueViolation is Postgres's SQLSTATE for a unique-constraint violation.
const pgUniqueViolation = "23505"

// TransactionRepository is the gorm-backed implementation of repositories.TransactionRepository.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository constructs a TransactionRepository bound to db, which may be
// either the top-level connection or a transaction handed in by Store.WithTx.
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts txn. A conflict on the idempotencyKey unique index is mapped to
// repositories.ErrTransactionNotFound, the sentinel the engine treats as "the race was
// lost; reload the winning row" (§5) rather than a genuine storage failure.
func (r *TransactionRepository) Create(ctx context.Context, txn *entities.Transaction) error {
	err := r.db.WithContext(ctx).Create(txn).Error
	if isUniqueViolation(err) {
		return repositories.ErrTransactionNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint violation,
// unwrapping gorm's error chain down to the underlying *pgconn.PgError.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *TransactionRepository) Update(ctx context.Context, txn *entities.Transaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	var txn entities.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, repositories.ErrTransactionNotFound)
	}
	return &txn, nil
}

func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	var txn entities.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err, repositories.ErrTransactionNotFound)
	}
	return &txn, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	var txn entities.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "idempotency_key = ?", key).Error; err != nil {
		return nil, mapNotFound(err, repositories.ErrTransactionNotFound)
	}
	return &txn, nil
}

func (r *TransactionRepository) GetByGatewayReference(ctx context.Context, reference string) (*entities.Transaction, error) {
	var txn entities.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "gateway_reference = ?", reference).Error; err != nil {
		return nil, mapNotFound(err, repositories.ErrTransactionNotFound)
	}
	return &txn, nil
}

func (r *TransactionRepository) ListDueForRetry(ctx context.Context, now time.Time, limit int) ([]*entities.Transaction, error) {
	var txns []*entities.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ? AND retry_count < max_retries", entities.TransactionStatusFailed, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// mapNotFound converts gorm's record-not-found sentinel into a domain-specific one,
// passing any other error through untouched.
func mapNotFound(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
