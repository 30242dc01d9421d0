package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

const journalColumns = `id, name, issn, scope, apc_enabled, apc_amount, currency,
       publication_base_url, is_active, created_at, updated_at`

// JournalRepository persists the journal catalog.
type JournalRepository struct {
	db *sqlx.DB
}

// NewJournalRepository constructs the repository.
func NewJournalRepository(db *sqlx.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// GetByID fetches a journal by identifier.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*models.Journal, error) {
	query := `SELECT ` + journalColumns + ` FROM journals WHERE id = $1`
	var journal models.Journal
	if err := r.db.GetContext(ctx, &journal, query, id); err != nil {
		return nil, err
	}
	return &journal, nil
}

// ListActive returns active journals ordered by name.
func (r *JournalRepository) ListActive(ctx context.Context) ([]models.Journal, error) {
	query := `SELECT ` + journalColumns + ` FROM journals WHERE is_active = TRUE ORDER BY name`
	var journals []models.Journal
	if err := r.db.SelectContext(ctx, &journals, query); err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	return journals, nil
}

// AssignedJournalIDs returns the journals a reviewer is scoped to.
func (r *JournalRepository) AssignedJournalIDs(ctx context.Context, reviewerID string) ([]string, error) {
	const query = `SELECT journal_id FROM reviewer_assignments WHERE reviewer_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, reviewerID); err != nil {
		return nil, fmt.Errorf("list reviewer assignments: %w", err)
	}
	return ids, nil
}
