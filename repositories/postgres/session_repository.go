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

// SessionRepository stores refresh-token sessions in PostgreSQL
type SessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB, logger *zap.Logger) repositories.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, company_id, user_agent, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	q := querierFor(ctx, r.db)
	_, err := q.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CompanyID,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return mapError("create session", err)
	}
	return nil
}

// GetByID retrieves a session
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, user_id, company_id, user_agent, ip_address, expires_at, revoked_at, created_at
		FROM sessions
		WHERE id = $1
	`

	q := querierFor(ctx, r.db)
	session := &models.Session{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.CompanyID,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, mapError("get session", err)
	}
	return session, nil
}

// Revoke revokes one session. Revoking an already revoked session is a no-op.
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return mapError("revoke session", err)
	}
	return requireAffected("revoke session", result)
}

// RevokeAllForUser revokes every active session of a user
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return 0, mapError("revoke user sessions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Debug("sessions revoked", zap.String("user_id", userID.String()), zap.Int64("count", n))
	return n, nil
}

// DeleteExpired removes sessions that expired before cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	q := querierFor(ctx, r.db)
	result, err := q.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, mapError("delete expired sessions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
