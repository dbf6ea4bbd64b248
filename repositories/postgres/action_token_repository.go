package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"go.uber.org/zap"
)

// ActionTokenRepository stores one-time tokens in PostgreSQL
type ActionTokenRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewActionTokenRepository creates a new action token repository
func NewActionTokenRepository(db *DB, logger *zap.Logger) repositories.ActionTokenRepository {
	return &ActionTokenRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new token
func (r *ActionTokenRepository) Create(ctx context.Context, token *models.ActionToken) error {
	query := `
		INSERT INTO action_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	q := querierFor(ctx, r.db)
	_, err := q.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Purpose,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return mapError("create action token", err)
	}

	r.logger.Debug("action token created",
		zap.String("user_id", token.UserID.String()),
		zap.String("purpose", string(token.Purpose)))
	return nil
}

// GetByHash retrieves a token by hash and purpose
func (r *ActionTokenRepository) GetByHash(ctx context.Context, purpose models.TokenPurpose, tokenHash string) (*models.ActionToken, error) {
	query := `
		SELECT id, user_id, purpose, token_hash, expires_at, used_at, created_at
		FROM action_tokens
		WHERE token_hash = $1 AND purpose = $2
	`

	q := querierFor(ctx, r.db)
	token := &models.ActionToken{}
	err := q.QueryRowContext(ctx, query, tokenHash, purpose).Scan(
		&token.ID,
		&token.UserID,
		&token.Purpose,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, mapError("get action token", err)
	}
	return token, nil
}

// MarkUsed consumes a token. The used_at guard makes concurrent redemption single-winner.
func (r *ActionTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE action_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return mapError("mark action token used", err)
	}
	return requireAffected("mark action token used", result)
}

// DeleteExpired removes tokens that expired or were used before cutoff
func (r *ActionTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM action_tokens WHERE expires_at < $1 OR used_at < $1`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, mapError("delete expired action tokens", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
