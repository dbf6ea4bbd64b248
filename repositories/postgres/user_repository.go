package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"go.uber.org/zap"
)

const userColumns = "id, name, email, password_hash, role, company_id, email_verified, created_at, updated_at"

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CompanyID,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	q := querierFor(ctx, r.db)
	_, err := q.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CompanyID,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError("create user", err)
	}

	r.logger.Debug("user created",
		zap.String("id", user.ID.String()),
		zap.String("company_id", user.CompanyID.String()))
	return nil
}

// GetByID retrieves a user of companyID
func (r *UserRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND company_id = $2
	`

	q := querierFor(ctx, r.db)
	user, err := scanUser(q.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		return nil, mapError("get user", err)
	}
	return user, nil
}

// FindByID retrieves a user regardless of company
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	q := querierFor(ctx, r.db)
	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError("find user", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	q := querierFor(ctx, r.db)
	user, err := scanUser(q.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, mapError("get user by email", err)
	}
	return user, nil
}

// ExistsByEmail reports whether any user has email
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	q := querierFor(ctx, r.db)
	if err := q.QueryRowContext(ctx, query, models.NormalizeEmail(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// ListByCompany retrieves a page of users of companyID, oldest first
func (r *UserRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.User, error) {
	query, args, err := psql.
		Select(userColumns).
		From("users").
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user list query: %w", err)
	}

	q := querierFor(ctx, r.db)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// Update applies patch to a user of companyID and returns the stored row
func (r *UserRepository) Update(ctx context.Context, companyID, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	builder := psql.Update("users")
	if patch.Name != nil {
		builder = builder.Set("name", *patch.Name)
	}
	if patch.Email != nil {
		builder = builder.Set("email", models.NormalizeEmail(*patch.Email))
	}
	if patch.Role != nil {
		builder = builder.Set("role", *patch.Role)
	}

	query, args, err := builder.
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"company_id": companyID}).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user update query: %w", err)
	}

	q := querierFor(ctx, r.db)
	user, err := scanUser(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError("update user", err)
	}

	r.logger.Debug("user updated",
		zap.String("id", id.String()),
		zap.Strings("fields", patch.Fields()))
	return user, nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return mapError("update password", err)
	}
	return requireAffected("update password", result)
}

// MarkEmailVerified flags a user's email as verified
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return mapError("mark email verified", err)
	}
	return requireAffected("mark email verified", result)
}

// Delete deletes a user of companyID
func (r *UserRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1 AND company_id = $2`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, companyID)
	if err != nil {
		return mapError("delete user", err)
	}
	if err := requireAffected("delete user", result); err != nil {
		return err
	}

	r.logger.Debug("user deleted", zap.String("id", id.String()))
	return nil
}
