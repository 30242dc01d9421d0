package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type mockInvoiceStore struct {
	invoices map[string]*models.Invoice
}

func (m *mockInvoiceStore) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	if inv, ok := m.invoices[id]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceStore) GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == invoiceNumber {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceStore) GetByArticle(ctx context.Context, articleID string) (*models.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.ArticleID == articleID {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceStore) ListByAuthor(ctx context.Context, authorID string) ([]models.Invoice, error) {
	return nil, nil
}

func (m *mockInvoiceStore) ListAll(ctx context.Context, limit, offset int) ([]models.Invoice, error) {
	list := make([]models.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		list = append(list, *inv)
	}
	return list, nil
}

func (m *mockInvoiceStore) MarkPaid(ctx context.Context, params repository.MarkPaidParams) error {
	inv, ok := m.invoices[params.ID]
	if !ok || inv.Status == models.InvoicePaid {
		return sql.ErrNoRows
	}
	inv.Status = models.InvoicePaid
	inv.PaymentProvider = &params.Provider
	inv.ProviderTransactionID = &params.ProviderTransactionID
	inv.PaidAt = &params.PaidAt
	return nil
}

type mockPaymentStore struct {
	payments []models.Payment
}

func (m *mockPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	for _, p := range m.payments {
		if p.ProviderTransactionID == payment.ProviderTransactionID {
			return repository.ErrDuplicate
		}
	}
	if payment.ID == "" {
		payment.ID = "pay-new"
	}
	m.payments = append(m.payments, *payment)
	return nil
}

func (m *mockPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	var list []models.Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			list = append(list, p)
		}
	}
	return list, nil
}

type paymentFixture struct {
	invoices *mockInvoiceStore
	payments *mockPaymentStore
	articles *mockArticleStore
	audit    *mockAuditWriter
	events   *mockEvents
	svc      *PaymentService
}

const paymeTestSecret = "payme-test-secret"

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		invoices: &mockInvoiceStore{invoices: map[string]*models.Invoice{
			"inv-1": {
				ID:            "inv-1",
				InvoiceNumber: "INV-A1B2C3D4E5F6",
				ArticleID:     "art-1",
				Amount:        150,
				Currency:      "USD",
				Status:        models.InvoicePending,
			},
		}},
		payments: &mockPaymentStore{},
		articles: &mockArticleStore{articles: map[string]*models.Article{
			"art-1": {ID: "art-1", CorrespondingAuthorID: "author-1", Status: models.StatusAccepted, PaymentStatus: models.PaymentPending},
		}},
		audit:  &mockAuditWriter{},
		events: &mockEvents{},
	}
	cfg := PaymentConfig{
		PaymeSecret:     paymeTestSecret,
		ClickSecret:     "click-test-secret",
		RedirectBaseURL: "https://pay.example.org",
	}
	f.svc = NewPaymentService(f.invoices, f.payments, f.articles, f.audit, f.events, cfg, nil, nil)
	return f
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	f := newPaymentFixture()
	body := []byte(`{"x":1}`)

	assert.NoError(t, f.svc.VerifySignature(models.ProviderPayme, body, sign(paymeTestSecret, body)))
	assert.True(t, appErrors.HasCode(
		f.svc.VerifySignature(models.ProviderPayme, body, sign("wrong-secret", body)),
		appErrors.ErrSignatureInvalid))
	// Each provider verifies with its own secret.
	assert.True(t, appErrors.HasCode(
		f.svc.VerifySignature(models.ProviderClick, body, sign(paymeTestSecret, body)),
		appErrors.ErrSignatureInvalid))
}

func TestProcessWebhookRejectsBadSignatureBeforeAnything(t *testing.T) {
	f := newPaymentFixture()
	body := []byte(`{"transaction_id":"tx-1","invoice_number":"INV-A1B2C3D4E5F6","amount":150,"currency":"USD","status":"COMPLETED"}`)

	_, err := f.svc.ProcessWebhook(context.Background(), models.ProviderPayme, body, "deadbeef")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSignatureInvalid))
	assert.Empty(t, f.payments.payments)
	assert.Equal(t, models.InvoicePending, f.invoices.invoices["inv-1"].Status)
}

func TestProcessWebhookConfirmsPayment(t *testing.T) {
	f := newPaymentFixture()
	body := []byte(`{"transaction_id":"tx-1","invoice_number":"INV-A1B2C3D4E5F6","amount":150,"currency":"USD","status":"COMPLETED"}`)

	result, err := f.svc.ProcessWebhook(context.Background(), models.ProviderPayme, body, sign(paymeTestSecret, body))
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.False(t, result.AlreadyProcessed)

	assert.Equal(t, models.InvoicePaid, f.invoices.invoices["inv-1"].Status)
	assert.Equal(t, models.PaymentPaid, f.articles.articles["art-1"].PaymentStatus)
	require.Len(t, f.payments.payments, 1)
	assert.Equal(t, models.PaymentTxCompleted, f.payments.payments[0].Status)
	assert.Contains(t, f.audit.actions(), models.AuditActionPaymentConfirmed)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventPaymentConfirmed, f.events.events[0].Kind)
}

func TestProcessWebhookDuplicateDelivery(t *testing.T) {
	f := newPaymentFixture()
	body := []byte(`{"transaction_id":"tx-1","invoice_number":"INV-A1B2C3D4E5F6","amount":150,"currency":"USD","status":"COMPLETED"}`)
	signature := sign(paymeTestSecret, body)

	_, err := f.svc.ProcessWebhook(context.Background(), models.ProviderPayme, body, signature)
	require.NoError(t, err)

	result, err := f.svc.ProcessWebhook(context.Background(), models.ProviderPayme, body, signature)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Len(t, f.payments.payments, 1)
	// The replay changed nothing, so it announced nothing.
	assert.Len(t, f.events.events, 1)
}

func TestProcessWebhookFailedStatusDoesNotConfirm(t *testing.T) {
	f := newPaymentFixture()
	body := []byte(`{"transaction_id":"tx-2","invoice_number":"INV-A1B2C3D4E5F6","amount":150,"currency":"USD","status":"FAILED"}`)

	result, err := f.svc.ProcessWebhook(context.Background(), models.ProviderPayme, body, sign(paymeTestSecret, body))
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
	require.Len(t, f.payments.payments, 1)
	assert.Equal(t, models.PaymentTxFailed, f.payments.payments[0].Status)
	assert.Equal(t, models.InvoicePending, f.invoices.invoices["inv-1"].Status)
	assert.Equal(t, models.PaymentPending, f.articles.articles["art-1"].PaymentStatus)
	assert.Empty(t, f.events.events)
}

func TestProcessWebhookUnknownInvoice(t *testing.T) {
	f := newPaymentFixture()
	body := []byte(`{"transaction_id":"tx-3","invoice_number":"INV-DOESNOTEXIST","amount":150,"currency":"USD","status":"COMPLETED"}`)

	_, err := f.svc.ProcessWebhook(context.Background(), models.ProviderPayme, body, sign(paymeTestSecret, body))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestMarkAsPaidIdempotent(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.MarkAsPaid(context.Background(), "inv-1", models.ProviderPayme, "tx-1", nil)
	require.NoError(t, err)
	auditCount := len(f.audit.logs)
	eventCount := len(f.events.events)

	invoice, err := f.svc.MarkAsPaid(context.Background(), "inv-1", models.ProviderPayme, "tx-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, invoice.Status)
	// Second call is a silent no-op.
	assert.Len(t, f.audit.logs, auditCount)
	assert.Len(t, f.events.events, eventCount)
}

func TestMarkAsPaidAdminOverride(t *testing.T) {
	f := newPaymentFixture()
	admin := "admin-1"

	_, err := f.svc.MarkAsPaid(context.Background(), "inv-1", models.ProviderManual, "manual-1", &admin)
	require.NoError(t, err)
	assert.Contains(t, f.audit.actions(), models.AuditActionAdminOverride)
	require.NotEmpty(t, f.audit.logs)
	require.NotNil(t, f.audit.logs[len(f.audit.logs)-1].ActorID)
	assert.Equal(t, "admin-1", *f.audit.logs[len(f.audit.logs)-1].ActorID)
}

func TestInitiatePaymentMutatesNothing(t *testing.T) {
	f := newPaymentFixture()

	initiation, err := f.svc.InitiatePayment(context.Background(), "inv-1", models.ProviderClick, "author-1", models.RoleAuthor)
	require.NoError(t, err)
	assert.Contains(t, initiation.RedirectURL, "click/checkout")
	assert.Contains(t, initiation.RedirectURL, "INV-A1B2C3D4E5F6")
	assert.Equal(t, models.InvoicePending, f.invoices.invoices["inv-1"].Status)
	assert.Empty(t, f.payments.payments)
}

func TestInitiatePaymentRejectsPaidInvoice(t *testing.T) {
	f := newPaymentFixture()
	f.invoices.invoices["inv-1"].Status = models.InvoicePaid

	_, err := f.svc.InitiatePayment(context.Background(), "inv-1", models.ProviderPayme, "author-1", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestInvoiceAccessScopedToOwner(t *testing.T) {
	f := newPaymentFixture()

	_, _, err := f.svc.GetInvoice(context.Background(), "inv-1", "author-2", models.RoleAuthor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))

	_, _, err = f.svc.GetInvoice(context.Background(), "inv-1", "admin-1", models.RoleAdmin)
	assert.NoError(t, err)
}
