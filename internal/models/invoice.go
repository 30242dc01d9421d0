package models

import (
	"encoding/json"
	"time"
)

// InvoiceStatus is the APC invoice lifecycle.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "PENDING"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceFailed    InvoiceStatus = "FAILED"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// PaymentProvider identifies the external payment gateway.
type PaymentProvider string

const (
	ProviderPayme  PaymentProvider = "PAYME"
	ProviderClick  PaymentProvider = "CLICK"
	ProviderManual PaymentProvider = "MANUAL"
)

// Invoice bills the APC for exactly one article. Created lazily when an
// article is accepted and the journal requires a nonzero charge.
type Invoice struct {
	ID                    string           `db:"id" json:"id"`
	InvoiceNumber         string           `db:"invoice_number" json:"invoice_number"`
	ArticleID             string           `db:"article_id" json:"article_id"`
	Amount                float64          `db:"amount" json:"amount"`
	Currency              string           `db:"currency" json:"currency"`
	Status                InvoiceStatus    `db:"status" json:"status"`
	PaymentProvider       *PaymentProvider `db:"payment_provider" json:"payment_provider,omitempty"`
	ProviderTransactionID *string          `db:"provider_transaction_id" json:"provider_transaction_id,omitempty"`
	PaidAt                *time.Time       `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// PaymentTxStatus is the state of a single payment attempt.
type PaymentTxStatus string

const (
	PaymentTxPending   PaymentTxStatus = "PENDING"
	PaymentTxCompleted PaymentTxStatus = "COMPLETED"
	PaymentTxFailed    PaymentTxStatus = "FAILED"
	PaymentTxCancelled PaymentTxStatus = "CANCELLED"
)

// Payment is one provider transaction against an invoice. The provider
// transaction id is globally unique and serves as the webhook idempotency key.
type Payment struct {
	ID                    string          `db:"id" json:"id"`
	InvoiceID             string          `db:"invoice_id" json:"invoice_id"`
	Provider              PaymentProvider `db:"provider" json:"provider"`
	ProviderTransactionID string          `db:"provider_transaction_id" json:"provider_transaction_id"`
	Amount                float64         `db:"amount" json:"amount"`
	Currency              string          `db:"currency" json:"currency"`
	Status                PaymentTxStatus `db:"status" json:"status"`
	WebhookData           json.RawMessage `db:"webhook_data" json:"webhook_data,omitempty"`
	CompletedAt           *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}
