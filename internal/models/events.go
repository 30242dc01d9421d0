package models

// EventKind identifies a typed domain event emitted by the workflow and
// payment services. Events replace implicit save-hook side effects; a
// dispatcher consumes them after the owning transaction commits.
type EventKind string

const (
	EventArticleSubmitted  EventKind = "article.submitted"
	EventArticleRejected   EventKind = "article.rejected"
	EventRevisionRequested EventKind = "article.revision_requested"
	EventArticleAccepted   EventKind = "article.accepted"
	EventArticlePublished  EventKind = "article.published"
	EventPaymentConfirmed  EventKind = "payment.confirmed"
	EventCertificateReady  EventKind = "certificate.ready"
)

// DomainEvent carries the identifiers a consumer needs to react; it never
// carries entity state, consumers re-read what they need.
type DomainEvent struct {
	Kind          EventKind         `json:"kind"`
	ArticleID     string            `json:"article_id,omitempty"`
	InvoiceID     string            `json:"invoice_id,omitempty"`
	CertificateID string            `json:"certificate_id,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
}
