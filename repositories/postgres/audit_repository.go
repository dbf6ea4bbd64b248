package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"go.uber.org/zap"
)

const auditColumns = "id, company_id, user_id, action, entity, entity_id, metadata, created_at"

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	metadata := log.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	q := querierFor(ctx, r.db)
	_, err = q.ExecContext(ctx, query,
		log.ID,
		log.CompanyID,
		log.UserID,
		log.Action,
		log.Entity,
		log.EntityID,
		raw,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// Query retrieves the entries of filter.CompanyID matching the optional
// inclusive time range and exact action, newest first
func (r *AuditRepository) Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	builder := psql.
		Select(auditColumns).
		From("audit_logs").
		Where(squirrel.Eq{"company_id": filter.CompanyID})

	if filter.From != nil {
		builder = builder.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	if filter.Action != nil {
		builder = builder.Where(squirrel.Eq{"action": *filter.Action})
	}

	builder = builder.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit query: %w", err)
	}

	q := querierFor(ctx, r.db)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		var raw []byte
		err := rows.Scan(
			&log.ID,
			&log.CompanyID,
			&log.UserID,
			&log.Action,
			&log.Entity,
			&log.EntityID,
			&raw,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Metadata = map[string]interface{}{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &log.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
