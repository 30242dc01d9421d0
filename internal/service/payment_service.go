package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type invoiceStore interface {
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error)
	GetByArticle(ctx context.Context, articleID string) (*models.Invoice, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.Invoice, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, params repository.MarkPaidParams) error
}

type paymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
}

// PaymentConfig carries the per-provider webhook secrets and the checkout
// redirect base.
type PaymentConfig struct {
	PaymeSecret     string
	ClickSecret     string
	RedirectBaseURL string
}

// WebhookRequest is the normalised payload both gateways deliver.
type WebhookRequest struct {
	TransactionID string  `json:"transaction_id" validate:"required"`
	InvoiceNumber string  `json:"invoice_number" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Currency      string  `json:"currency" validate:"required"`
	Status        string  `json:"status" validate:"required,oneof=COMPLETED FAILED CANCELLED"`
}

// WebhookResult reports what a delivery did.
type WebhookResult struct {
	InvoiceID        string `json:"invoice_id"`
	TransactionID    string `json:"transaction_id"`
	AlreadyProcessed bool   `json:"already_processed"`
	Confirmed        bool   `json:"confirmed"`
}

// PaymentInitiation is the checkout hand-off returned to the author.
type PaymentInitiation struct {
	InvoiceID   string                 `json:"invoice_id"`
	Provider    models.PaymentProvider `json:"provider"`
	RedirectURL string                 `json:"redirect_url"`
}

// PaymentService owns the billing track: invoice reads, checkout hand-off,
// webhook processing and payment confirmation. It never touches the article's
// scientific status.
type PaymentService struct {
	invoices  invoiceStore
	payments  paymentStore
	articles  articleStore
	audit     auditWriter
	events    eventPublisher
	cfg       PaymentConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(invoices invoiceStore, payments paymentStore, articles articleStore, audit auditWriter, events eventPublisher, cfg PaymentConfig, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		invoices:  invoices,
		payments:  payments,
		articles:  articles,
		audit:     audit,
		events:    events,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

func (s *PaymentService) secretFor(provider models.PaymentProvider) (string, error) {
	switch provider {
	case models.ProviderPayme:
		return s.cfg.PaymeSecret, nil
	case models.ProviderClick:
		return s.cfg.ClickSecret, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported payment provider %s", provider))
}

// VerifySignature checks the HMAC-SHA256 of the raw body against the header
// value. Verification happens before the payload is even parsed; an invalid
// signature must cause no reads or writes beyond this point.
func (s *PaymentService) VerifySignature(provider models.PaymentProvider, body []byte, signature string) error {
	secret, err := s.secretFor(provider)
	if err != nil {
		return err
	}
	if secret == "" {
		return appErrors.Clone(appErrors.ErrSignatureInvalid, fmt.Sprintf("no webhook secret configured for %s", provider))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return appErrors.ErrSignatureInvalid
	}
	return nil
}

// ProcessWebhook handles one gateway delivery. The payment row's unique
// transaction id makes redelivery a no-op; only a COMPLETED delivery confirms
// the invoice.
func (s *PaymentService) ProcessWebhook(ctx context.Context, provider models.PaymentProvider, body []byte, signature string) (*WebhookResult, error) {
	if err := s.VerifySignature(provider, body, signature); err != nil {
		return nil, err
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed webhook payload")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload")
	}

	invoice, err := s.invoices.GetByNumber(ctx, req.InvoiceNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}

	txStatus := models.PaymentTxStatus(req.Status)
	now := time.Now().UTC()
	payment := &models.Payment{
		InvoiceID:             invoice.ID,
		Provider:              provider,
		ProviderTransactionID: req.TransactionID,
		Amount:                req.Amount,
		Currency:              req.Currency,
		Status:                txStatus,
		WebhookData:           json.RawMessage(body),
	}
	if txStatus == models.PaymentTxCompleted {
		payment.CompletedAt = &now
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Info("duplicate webhook delivery ignored",
				zap.String("provider", string(provider)),
				zap.String("transaction_id", req.TransactionID))
			return &WebhookResult{InvoiceID: invoice.ID, TransactionID: req.TransactionID, AlreadyProcessed: true}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	result := &WebhookResult{InvoiceID: invoice.ID, TransactionID: req.TransactionID}
	if txStatus != models.PaymentTxCompleted {
		return result, nil
	}

	if _, err := s.MarkAsPaid(ctx, invoice.ID, provider, req.TransactionID, nil); err != nil {
		return nil, err
	}
	result.Confirmed = true
	return result, nil
}

// MarkAsPaid is the only path that settles an invoice and flips the article's
// payment status to PAID. A nil actor marks a gateway confirmation; a non-nil
// actor is an admin override. Already-paid invoices are an idempotent no-op
// with no audit entry and no event.
func (s *PaymentService) MarkAsPaid(ctx context.Context, invoiceID string, provider models.PaymentProvider, transactionID string, actorID *string) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}

	paidAt := time.Now().UTC()
	err = s.invoices.MarkPaid(ctx, repository.MarkPaidParams{
		ID:                    invoice.ID,
		Provider:              provider,
		ProviderTransactionID: transactionID,
		PaidAt:                paidAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already paid; nothing changed, nothing to announce.
			return invoice, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
	}
	invoice.Status = models.InvoicePaid
	invoice.PaymentProvider = &provider
	invoice.ProviderTransactionID = &transactionID
	invoice.PaidAt = &paidAt

	if err := s.articles.SetPaymentStatus(ctx, invoice.ArticleID, models.PaymentPaid); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invoice paid but article payment status update failed")
	}

	metadata := map[string]string{
		"provider":       string(provider),
		"transaction_id": transactionID,
	}
	action := models.AuditActionPaymentConfirmed
	if actorID != nil {
		metadata["manual"] = "true"
		action = models.AuditActionAdminOverride
	}
	s.emitAudit(ctx, actorID, action, models.EntityInvoice, invoice.ID, metadata)

	if s.events != nil {
		s.events.Publish(models.DomainEvent{
			Kind:      models.EventPaymentConfirmed,
			ArticleID: invoice.ArticleID,
			InvoiceID: invoice.ID,
		})
	}
	return invoice, nil
}

// authorizeInvoice checks the caller may act on the invoice: admins always,
// authors only for their own article.
func (s *PaymentService) authorizeInvoice(ctx context.Context, invoice *models.Invoice, actorID string, role models.UserRole) error {
	if role == models.RoleAdmin {
		return nil
	}
	article, err := s.articles.GetByID(ctx, invoice.ArticleID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article for invoice")
	}
	if article.CorrespondingAuthorID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "invoice belongs to another author")
	}
	return nil
}

// InitiatePayment builds the checkout hand-off for a pending invoice. It
// mutates nothing; confirmation only ever arrives through the webhook or an
// admin override.
func (s *PaymentService) InitiatePayment(ctx context.Context, invoiceID string, provider models.PaymentProvider, actorID string, role models.UserRole) (*PaymentInitiation, error) {
	if _, err := s.secretFor(provider); err != nil {
		return nil, err
	}
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if err := s.authorizeInvoice(ctx, invoice, actorID, role); err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoicePaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "invoice already paid")
	}
	if invoice.Status == models.InvoiceCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "invoice cancelled")
	}
	redirect := fmt.Sprintf("%s/%s/checkout?invoice=%s&amount=%.2f&currency=%s",
		strings.TrimRight(s.cfg.RedirectBaseURL, "/"),
		strings.ToLower(string(provider)),
		invoice.InvoiceNumber, invoice.Amount, invoice.Currency)
	return &PaymentInitiation{InvoiceID: invoice.ID, Provider: provider, RedirectURL: redirect}, nil
}

// GetInvoice returns one invoice with its payment attempts.
func (s *PaymentService) GetInvoice(ctx context.Context, invoiceID, actorID string, role models.UserRole) (*models.Invoice, []models.Payment, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if err := s.authorizeInvoice(ctx, invoice, actorID, role); err != nil {
		return nil, nil, err
	}
	payments, err := s.payments.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	return invoice, payments, nil
}

// GetInvoiceForArticle returns the article's invoice if one exists.
func (s *PaymentService) GetInvoiceForArticle(ctx context.Context, articleID, actorID string, role models.UserRole) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no invoice for this article")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if err := s.authorizeInvoice(ctx, invoice, actorID, role); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListInvoices returns the caller-visible invoices: authors see their own,
// admins see everything.
func (s *PaymentService) ListInvoices(ctx context.Context, actorID string, role models.UserRole, limit, offset int) ([]models.Invoice, error) {
	var (
		invoices []models.Invoice
		err      error
	)
	if role == models.RoleAdmin {
		invoices, err = s.invoices.ListAll(ctx, limit, offset)
	} else {
		invoices, err = s.invoices.ListByAuthor(ctx, actorID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, nil
}

func (s *PaymentService) emitAudit(ctx context.Context, actorID *string, action, entityType, entityID string, metadata map[string]string) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		payload = []byte("{}")
	}
	log := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   payload,
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}
