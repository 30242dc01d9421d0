package models

import "time"

// CertificateStatus is the certificate lifecycle. Revocation is one-way.
type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "ACTIVE"
	CertificateRevoked CertificateStatus = "REVOKED"
)

// Certificate is the publication certificate for exactly one article,
// creatable only once the article is PUBLISHED.
type Certificate struct {
	ID               string            `db:"id" json:"id"`
	CertificateID    string            `db:"certificate_id" json:"certificate_id"`
	ArticleID        string            `db:"article_id" json:"article_id"`
	PDFFile          []byte            `db:"pdf_file" json:"-"`
	Status           CertificateStatus `db:"status" json:"status"`
	IssuedAt         time.Time         `db:"issued_at" json:"issued_at"`
	RevokedAt        *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedBy        *string           `db:"revoked_by" json:"revoked_by,omitempty"`
	RevocationReason string            `db:"revocation_reason" json:"revocation_reason,omitempty"`
}
