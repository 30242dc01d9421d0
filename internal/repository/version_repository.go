package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

// VersionRepository persists manuscript versions.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create inserts a version row. The (article_id, version_number) unique
// constraint rejects concurrent uploads of the same version.
func (r *VersionRepository) Create(ctx context.Context, version *models.ArticleVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.RevisionType == "" {
		version.RevisionType = models.RevisionInitial
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO article_versions
	(id, article_id, version_number, manuscript_file, revision_type, notes, created_by, created_at)
	VALUES (:id, :article_id, :version_number, :manuscript_file, :revision_type, :notes, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, version); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create article version: %w", err)
	}
	return nil
}

// MaxVersionNumber returns the highest version number for an article, zero
// when none exist.
func (r *VersionRepository) MaxVersionNumber(ctx context.Context, articleID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version_number), 0) FROM article_versions WHERE article_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, articleID); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return max, nil
}

// ListByArticle returns versions newest first.
func (r *VersionRepository) ListByArticle(ctx context.Context, articleID string) ([]models.ArticleVersion, error) {
	const query = `SELECT id, article_id, version_number, manuscript_file, revision_type, notes, created_by, created_at
	FROM article_versions WHERE article_id = $1 ORDER BY version_number DESC`
	var versions []models.ArticleVersion
	if err := r.db.SelectContext(ctx, &versions, query, articleID); err != nil {
		return nil, fmt.Errorf("list article versions: %w", err)
	}
	return versions, nil
}
