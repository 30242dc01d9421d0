package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

const invoiceColumns = `id, invoice_number, article_id, amount, currency, status,
       payment_provider, provider_transaction_id, paid_at, created_at, updated_at`

// InvoiceRepository persists APC invoices.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// GenerateInvoiceNumber builds an INV-<12 hex upper> identifier.
func GenerateInvoiceNumber() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("INV-%012X", time.Now().UnixNano()&0xFFFFFFFFFFFF)
	}
	return "INV-" + strings.ToUpper(hex.EncodeToString(buf))
}

// GetOrCreateForArticle returns the article's invoice, creating it when
// absent. The one-to-one constraint on article_id makes concurrent accepts
// converge on a single invoice.
func (r *InvoiceRepository) GetOrCreateForArticle(ctx context.Context, articleID string, amount float64, currency string) (*models.Invoice, bool, error) {
	existing, err := r.GetByArticle(ctx, articleID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	now := time.Now().UTC()
	invoice := &models.Invoice{
		ID:            uuid.NewString(),
		InvoiceNumber: GenerateInvoiceNumber(),
		ArticleID:     articleID,
		Amount:        amount,
		Currency:      currency,
		Status:        models.InvoicePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	const query = `INSERT INTO invoices
	(id, invoice_number, article_id, amount, currency, status, created_at, updated_at)
	VALUES (:id, :invoice_number, :article_id, :amount, :currency, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		if isUniqueViolation(err) {
			// Lost the race; someone else created it.
			existing, getErr := r.GetByArticle(ctx, articleID)
			if getErr != nil {
				return nil, false, fmt.Errorf("reload invoice after conflict: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, true, nil
}

// GetByID fetches an invoice by identifier.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByNumber fetches an invoice by its public invoice number.
func (r *InvoiceRepository) GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, invoiceNumber); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByArticle fetches the invoice for an article.
func (r *InvoiceRepository) GetByArticle(ctx context.Context, articleID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE article_id = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, articleID); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByAuthor returns invoices for articles owned by the author.
func (r *InvoiceRepository) ListByAuthor(ctx context.Context, authorID string) ([]models.Invoice, error) {
	query := `SELECT i.` + strings.ReplaceAll(invoiceColumns, ", ", ", i.") + `
	FROM invoices i JOIN articles a ON a.id = i.article_id
	WHERE a.corresponding_author_id = $1 ORDER BY i.created_at DESC`
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, authorID); err != nil {
		return nil, fmt.Errorf("list invoices by author: %w", err)
	}
	return invoices, nil
}

// ListAll returns all invoices, newest first.
func (r *InvoiceRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Invoice, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// MarkPaidParams groups the fields recorded on payment confirmation.
type MarkPaidParams struct {
	ID                    string
	Provider              models.PaymentProvider
	ProviderTransactionID string
	PaidAt                time.Time
}

// MarkPaid sets the invoice PAID conditionally on it not being PAID yet.
// Zero rows affected means it was already paid (idempotent no-op signal).
func (r *InvoiceRepository) MarkPaid(ctx context.Context, params MarkPaidParams) error {
	const query = `UPDATE invoices SET
	 status = 'PAID', payment_provider = :provider, provider_transaction_id = :transaction_id,
	 paid_at = :paid_at, updated_at = :paid_at
	WHERE id = :id AND status <> 'PAID'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"provider":       params.Provider,
		"transaction_id": params.ProviderTransactionID,
		"paid_at":        params.PaidAt,
	})
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check invoice update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
