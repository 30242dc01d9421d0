package models

import "time"

// Journal represents a publication venue and its APC configuration.
type Journal struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	ISSN               string    `db:"issn" json:"issn,omitempty"`
	Scope              string    `db:"scope" json:"scope"`
	APCEnabled         bool      `db:"apc_enabled" json:"apc_enabled"`
	APCAmount          float64   `db:"apc_amount" json:"apc_amount"`
	Currency           string    `db:"currency" json:"currency"`
	PublicationBaseURL string    `db:"publication_base_url" json:"publication_base_url,omitempty"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// RequiresAPC reports whether accepting an article in this journal creates
// an invoice.
func (j *Journal) RequiresAPC() bool {
	return j.APCEnabled && j.APCAmount > 0
}

// ReviewerAssignment scopes a reviewer to a journal.
type ReviewerAssignment struct {
	ID         string    `db:"id" json:"id"`
	ReviewerID string    `db:"reviewer_id" json:"reviewer_id"`
	JournalID  string    `db:"journal_id" json:"journal_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
