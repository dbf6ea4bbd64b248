package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"go.uber.org/zap"
)

// CompanyRepository implements the repositories.CompanyRepository interface
type CompanyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *DB, logger *zap.Logger) repositories.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new company
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	q := querierFor(ctx, r.db)
	_, err := q.ExecContext(ctx, query,
		company.ID,
		company.Name,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return mapError("create company", err)
	}

	r.logger.Debug("company created", zap.String("id", company.ID.String()))
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	q := querierFor(ctx, r.db)
	company := &models.Company{}

	err := q.QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		return nil, mapError("get company", err)
	}

	return company, nil
}
