package postgres

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/reviewmart/internal/models"
)

const (
	refundColumns = `id, idempotency_key, gateway, payment_id, amount, reason, status,
					gateway_refund_id, error_message, created_at, updated_at`

	insertRefundQuery = `
					INSERT INTO payment_refunds (idempotency_key, gateway, payment_id, amount, reason, status)
					VALUES ($1, $2, $3, $4, $5, $6)
					RETURNING id, created_at, updated_at
`
	selectRefundByKeyQuery = `
					SELECT ` + refundColumns + ` FROM payment_refunds
					WHERE idempotency_key = $1
`
	updateRefundQuery = `
					UPDATE payment_refunds
					SET status = $1, gateway_refund_id = $2, error_message = $3, updated_at = NOW()
					WHERE id = $4
					RETURNING updated_at
`
	touchRefundQuery = `
					UPDATE payment_refunds
					SET updated_at = NOW()
					WHERE id = $1
					RETURNING updated_at
`
	selectUnsettledRefundsQuery = `
					SELECT ` + refundColumns + ` FROM payment_refunds
					WHERE status IN ('initiated', 'pending')
					ORDER BY updated_at, id
					LIMIT $1
`
)

func scanRefund(row scanner) (*models.Refund, error) {
	r := models.Refund{}
	err := row.Scan(&r.ID, &r.IdempotencyKey, &r.Gateway, &r.PaymentID, &r.Amount, &r.Reason, &r.Status,
		&r.GatewayRefundID, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return &r, nil
}

// RefundRepository implements repository.RefundRepository
type RefundRepository struct {
	db *DB
}

// NewRefundRepository creates new RefundRepository instance
func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// CreateRefund inserts refund, ErrConflictData if its key is taken
func (rr *RefundRepository) CreateRefund(ctx context.Context, refund *models.Refund) error {
	err := rr.db.QueryRow(ctx, insertRefundQuery, refund.IdempotencyKey, refund.Gateway, refund.PaymentID,
		refund.Amount, refund.Reason, refund.Status).Scan(&refund.ID, &refund.CreatedAt, &refund.UpdatedAt)
	if err != nil {
		if rr.db.ErrorCode(err) == pgErrUniqueViolationCode {
			return models.ErrConflictData
		}
		return err
	}
	return nil
}

// GetRefundByKey returns refund by idempotency key
func (rr *RefundRepository) GetRefundByKey(ctx context.Context, key string) (*models.Refund, error) {
	return scanRefund(rr.db.QueryRow(ctx, selectRefundByKeyQuery, key))
}

// UpdateRefund stores status fields of refund
func (rr *RefundRepository) UpdateRefund(ctx context.Context, refund *models.Refund) error {
	err := rr.db.QueryRow(ctx, updateRefundQuery, refund.Status, refund.GatewayRefundID, refund.ErrorMessage, refund.ID).
		Scan(&refund.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrDataNotFound
		}
		return err
	}
	return nil
}

// TouchRefund marks refund as checked without changing its status
func (rr *RefundRepository) TouchRefund(ctx context.Context, refund *models.Refund) error {
	err := rr.db.QueryRow(ctx, touchRefundQuery, refund.ID).Scan(&refund.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrDataNotFound
		}
		return err
	}
	return nil
}

// GetUnsettledRefunds returns refunds in initiated or pending status,
// least recently checked first
func (rr *RefundRepository) GetUnsettledRefunds(ctx context.Context, limit int) ([]models.Refund, error) {
	rows, err := rr.db.Query(ctx, selectUnsettledRefundsQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := []models.Refund{}

	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}
