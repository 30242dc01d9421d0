package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

const articleColumns = `id, submission_id, title, abstract, keywords, corresponding_author_id, authors,
       journal_id, status, payment_status, ethics_declaration, originality_declaration,
       publication_url, publication_date, submitted_at, created_at, updated_at`

const submissionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ArticleRepository persists articles.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository constructs the repository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// GenerateSubmissionID builds a SUB-YYYYMMDD-XXXXXX identifier.
func GenerateSubmissionID(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(submissionIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(int64(i))
		}
		suffix[i] = submissionIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("SUB-%s-%s", now.Format("20060102"), string(suffix))
}

// Create inserts a new draft article. The submission id is generated here;
// the unique index closes the race, colliding inserts retry with a fresh id.
func (r *ArticleRepository) Create(ctx context.Context, article *models.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.Status == "" {
		article.Status = models.StatusDraft
	}
	if article.PaymentStatus == "" {
		article.PaymentStatus = models.PaymentNone
	}
	if len(article.Authors) == 0 {
		article.Authors = []byte("[]")
	}
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	const query = `INSERT INTO articles
	(id, submission_id, title, abstract, keywords, corresponding_author_id, authors, journal_id,
	 status, payment_status, ethics_declaration, originality_declaration, created_at, updated_at)
	VALUES (:id, :submission_id, :title, :abstract, :keywords, :corresponding_author_id, :authors, :journal_id,
	 :status, :payment_status, :ethics_declaration, :originality_declaration, :created_at, :updated_at)`

	for attempt := 0; attempt < 5; attempt++ {
		if article.SubmissionID == "" || attempt > 0 {
			article.SubmissionID = GenerateSubmissionID(now)
		}
		_, err := r.db.NamedExecContext(ctx, query, article)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return fmt.Errorf("create article: %w", err)
	}
	return fmt.Errorf("create article: submission id collisions exhausted retries")
}

// GetByID fetches an article by identifier.
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	var article models.Article
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		return nil, err
	}
	return &article, nil
}

// GetBySubmissionID fetches an article by its public submission identifier.
func (r *ArticleRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE submission_id = $1`
	var article models.Article
	if err := r.db.GetContext(ctx, &article, query, submissionID); err != nil {
		return nil, err
	}
	return &article, nil
}

// List returns articles matching the filter, latest first.
func (r *ArticleRepository) List(ctx context.Context, filter models.ArticleFilter) ([]models.Article, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + articleColumns + ` FROM articles`)

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.JournalID != "" {
		args = append(args, filter.JournalID)
		conditions = append(conditions, fmt.Sprintf("journal_id = $%d", len(args)))
	}
	if len(filter.JournalIDs) > 0 {
		placeholders := make([]string, len(filter.JournalIDs))
		for i, id := range filter.JournalIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("journal_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CorrespondingAuthorID != "" {
		args = append(args, filter.CorrespondingAuthorID)
		conditions = append(conditions, fmt.Sprintf("corresponding_author_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR submission_id ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var articles []models.Article
	if err := r.db.SelectContext(ctx, &articles, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// UpdateDraft persists author-editable fields while the article is a draft.
func (r *ArticleRepository) UpdateDraft(ctx context.Context, article *models.Article) error {
	article.UpdatedAt = time.Now().UTC()
	const query = `UPDATE articles SET
	 title = :title, abstract = :abstract, keywords = :keywords, authors = :authors,
	 ethics_declaration = :ethics_declaration, originality_declaration = :originality_declaration,
	 updated_at = :updated_at
	WHERE id = :id AND status = 'DRAFT'`
	result, err := r.db.NamedExecContext(ctx, query, article)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check draft update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatusParams groups the columns a guarded transition may touch.
type UpdateStatusParams struct {
	ID              string
	From            models.ArticleStatus
	To              models.ArticleStatus
	SetSubmittedAt  bool
	PublicationURL  *string
	PublicationDate *time.Time
}

// UpdateStatus applies a status transition conditionally on the expected
// current status. Zero rows affected means a concurrent writer moved the
// article first; callers surface that as a retryable conflict.
func (r *ArticleRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	setParts := []string{"status = :to", "updated_at = :updated_at"}
	if params.SetSubmittedAt {
		setParts = append(setParts, "submitted_at = COALESCE(submitted_at, :updated_at)")
	}
	if params.PublicationURL != nil {
		setParts = append(setParts, "publication_url = :publication_url")
	}
	if params.PublicationDate != nil {
		setParts = append(setParts, "publication_date = :publication_date")
	}
	query := fmt.Sprintf("UPDATE articles SET %s WHERE id = :id AND status = :from",
		strings.Join(setParts, ", "))

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"from":             params.From,
		"to":               params.To,
		"updated_at":       time.Now().UTC(),
		"publication_url":  params.PublicationURL,
		"publication_date": params.PublicationDate,
	})
	if err != nil {
		return fmt.Errorf("update article status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPaymentStatus mutates only the business payment field, never status.
func (r *ArticleRepository) SetPaymentStatus(ctx context.Context, articleID string, payment models.PaymentStatus) error {
	const query = `UPDATE articles SET payment_status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, payment, time.Now().UTC(), articleID)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
