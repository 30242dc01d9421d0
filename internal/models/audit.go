package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent critical actions to be logged.
const (
	AuditActionStatusChange       = "STATUS_CHANGE"
	AuditActionArticleSubmitted   = "ARTICLE_SUBMITTED"
	AuditActionArticlePublished   = "ARTICLE_PUBLISHED"
	AuditActionReviewSubmitted    = "REVIEW_SUBMITTED"
	AuditActionPaymentConfirmed   = "PAYMENT_CONFIRMED"
	AuditActionCertificateIssued  = "CERTIFICATE_ISSUED"
	AuditActionCertificateRevoked = "CERTIFICATE_REVOKED"
	AuditActionAdminOverride      = "ADMIN_OVERRIDE"
	AuditActionLogin              = "LOGIN"
)

// Audited entity types.
const (
	EntityArticle     = "ARTICLE"
	EntityInvoice     = "INVOICE"
	EntityCertificate = "CERTIFICATE"
)

// AuditLog is an append-only record. A nil actor means a system action.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	ActorID    *string         `db:"actor_id" json:"actor_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
