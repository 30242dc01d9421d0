package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ujmp/editorial-api/internal/models"
)

// AuditRepository appends audit records. Rows are never updated or deleted.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit log entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if len(log.Metadata) == 0 {
		log.Metadata = []byte("{}")
	}
	const query = `INSERT INTO audit_logs
	(id, actor_id, action, entity_type, entity_id, metadata, created_at)
	VALUES (:id, :actor_id, :action, :entity_type, :entity_id, :metadata, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListForEntity returns the audit trail for one entity, oldest first.
func (r *AuditRepository) ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	const query = `SELECT id, actor_id, action, entity_type, entity_id, metadata, created_at
	FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
