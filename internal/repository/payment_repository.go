package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

// PaymentRepository persists payment attempts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment record. The unique constraint on
// provider_transaction_id is the webhook idempotency mechanism: a duplicate
// delivery returns ErrDuplicate without a second row.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if len(payment.WebhookData) == 0 {
		payment.WebhookData = []byte("{}")
	}
	const query = `INSERT INTO payments
	(id, invoice_id, provider, provider_transaction_id, amount, currency, status, webhook_data, completed_at, created_at)
	VALUES (:id, :invoice_id, :provider, :provider_transaction_id, :amount, :currency, :status, :webhook_data, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByProviderTransactionID fetches a payment by its idempotency key.
func (r *PaymentRepository) GetByProviderTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	const query = `SELECT id, invoice_id, provider, provider_transaction_id, amount, currency, status, webhook_data, completed_at, created_at
	FROM payments WHERE provider_transaction_id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, transactionID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByInvoice returns payment attempts newest first.
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	const query = `SELECT id, invoice_id, provider, provider_transaction_id, amount, currency, status, webhook_data, completed_at, created_at
	FROM payments WHERE invoice_id = $1 ORDER BY created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, invoiceID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
