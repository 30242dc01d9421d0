package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

const certificateColumns = `id, certificate_id, article_id, pdf_file, status,
       issued_at, revoked_at, revoked_by, revocation_reason`

// CertificateRepository persists publication certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a certificate. The one-to-one constraint on article_id
// makes duplicate publish triggers converge on a single certificate;
// a duplicate insert returns ErrDuplicate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.CertificateID == "" {
		cert.CertificateID = uuid.NewString()
	}
	if cert.Status == "" {
		cert.Status = models.CertificateActive
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates
	(id, certificate_id, article_id, pdf_file, status, issued_at)
	VALUES (:id, :certificate_id, :article_id, :pdf_file, :status, :issued_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetByArticle fetches the certificate for an article.
func (r *CertificateRepository) GetByArticle(ctx context.Context, articleID string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE article_id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, articleID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// GetByCertificateID fetches a certificate by its public verification id.
func (r *CertificateRepository) GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE certificate_id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, certificateID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// SavePDF stores the rendered document.
func (r *CertificateRepository) SavePDF(ctx context.Context, id string, pdf []byte) error {
	const query = `UPDATE certificates SET pdf_file = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, pdf, id); err != nil {
		return fmt.Errorf("save certificate pdf: %w", err)
	}
	return nil
}

// RevokeParams groups the revocation record.
type RevokeParams struct {
	ID        string
	RevokedBy string
	Reason    string
	RevokedAt time.Time
}

// Revoke marks the certificate REVOKED conditionally on it being ACTIVE;
// revocation is one-way, a second call reports sql.ErrNoRows.
func (r *CertificateRepository) Revoke(ctx context.Context, params RevokeParams) error {
	setParts := []string{
		"status = 'REVOKED'",
		"revoked_at = :revoked_at",
		"revoked_by = :revoked_by",
		"revocation_reason = :reason",
	}
	query := fmt.Sprintf("UPDATE certificates SET %s WHERE id = :id AND status = 'ACTIVE'",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         params.ID,
		"revoked_at": params.RevokedAt,
		"revoked_by": params.RevokedBy,
		"reason":     params.Reason,
	})
	if err != nil {
		return fmt.Errorf("revoke certificate: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check revoke rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
