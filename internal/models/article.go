package models

import (
	"encoding/json"
	"time"
)

// ArticleStatus is the scientific lifecycle state of a submission.
type ArticleStatus string

const (
	StatusDraft             ArticleStatus = "DRAFT"
	StatusSubmitted         ArticleStatus = "SUBMITTED"
	StatusDeskCheck         ArticleStatus = "DESK_CHECK"
	StatusReviewersInvited  ArticleStatus = "REVIEWERS_INVITED"
	StatusUnderReview       ArticleStatus = "UNDER_REVIEW"
	StatusRevisionRequired  ArticleStatus = "REVISION_REQUIRED"
	StatusRevisedSubmitted  ArticleStatus = "REVISED_SUBMITTED"
	StatusEditorDecision    ArticleStatus = "EDITOR_DECISION"
	StatusAccepted          ArticleStatus = "ACCEPTED"
	StatusPaymentPending    ArticleStatus = "PAYMENT_PENDING"
	StatusPaid              ArticleStatus = "PAID"
	StatusProduction        ArticleStatus = "PRODUCTION"
	StatusScheduled         ArticleStatus = "SCHEDULED"
	StatusPublished         ArticleStatus = "PUBLISHED"
	StatusCertificateIssued ArticleStatus = "CERTIFICATE_ISSUED"
	StatusRejected          ArticleStatus = "REJECTED"
	StatusArchived          ArticleStatus = "ARCHIVED"
)

// PaymentStatus is the APC billing state, tracked independently of the
// scientific status and mutated only by payment-related operations.
type PaymentStatus string

const (
	PaymentNone        PaymentStatus = "NONE"
	PaymentPending     PaymentStatus = "PENDING"
	PaymentPaid        PaymentStatus = "PAID"
	PaymentNotRequired PaymentStatus = "NOT_REQUIRED"
)

// Article represents a submission moving through the editorial workflow.
// Status must only change through the workflow service's guarded transition.
type Article struct {
	ID                     string          `db:"id" json:"id"`
	SubmissionID           string          `db:"submission_id" json:"submission_id"`
	Title                  string          `db:"title" json:"title"`
	Abstract               string          `db:"abstract" json:"abstract"`
	Keywords               string          `db:"keywords" json:"keywords,omitempty"`
	CorrespondingAuthorID  string          `db:"corresponding_author_id" json:"corresponding_author_id"`
	Authors                json.RawMessage `db:"authors" json:"authors"`
	JournalID              string          `db:"journal_id" json:"journal_id"`
	Status                 ArticleStatus   `db:"status" json:"status"`
	PaymentStatus          PaymentStatus   `db:"payment_status" json:"payment_status"`
	EthicsDeclaration      bool            `db:"ethics_declaration" json:"ethics_declaration"`
	OriginalityDeclaration bool            `db:"originality_declaration" json:"originality_declaration"`
	PublicationURL         *string         `db:"publication_url" json:"publication_url,omitempty"`
	PublicationDate        *time.Time      `db:"publication_date" json:"publication_date,omitempty"`
	SubmittedAt            *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
}

// ArticleFilter captures filtering criteria for listing articles.
type ArticleFilter struct {
	Status                []ArticleStatus
	JournalID             string
	JournalIDs            []string
	CorrespondingAuthorID string
	Search                string
	Limit                 int
	Offset                int
}

// RevisionType classifies a manuscript version.
type RevisionType string

const (
	RevisionInitial RevisionType = "INITIAL"
	RevisionMinor   RevisionType = "MINOR"
	RevisionMajor   RevisionType = "MAJOR"
)

// ArticleVersion is one uploaded manuscript revision. Version numbers are
// unique per article and increase monotonically from 1.
type ArticleVersion struct {
	ID             string       `db:"id" json:"id"`
	ArticleID      string       `db:"article_id" json:"article_id"`
	VersionNumber  int          `db:"version_number" json:"version_number"`
	ManuscriptFile string       `db:"manuscript_file" json:"manuscript_file"`
	RevisionType   RevisionType `db:"revision_type" json:"revision_type"`
	Notes          string       `db:"notes" json:"notes,omitempty"`
	CreatedBy      string       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
