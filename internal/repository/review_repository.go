package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

// ReviewRepository persists review decisions.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A second review by the same reviewer for the
// same article hits the unique constraint and returns ErrDuplicate.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews
	(id, article_id, reviewer_id, recommendation, comments_to_author, confidential_comments, created_at, updated_at)
	VALUES (:id, :article_id, :reviewer_id, :recommendation, :comments_to_author, :confidential_comments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ListByArticle returns reviews newest first.
func (r *ReviewRepository) ListByArticle(ctx context.Context, articleID string) ([]models.Review, error) {
	const query = `SELECT id, article_id, reviewer_id, recommendation, comments_to_author, confidential_comments, created_at, updated_at
	FROM reviews WHERE article_id = $1 ORDER BY created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, articleID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
