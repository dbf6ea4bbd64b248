package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/models"
)

// Storage-level sentinel errors. Services translate them into domain errors.
var (
	// ErrNotFound is returned when no row matched the query
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager runs work atomically. Repository calls made with the
// ctx handed to fn join the transaction.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CompanyRepository handles company data operations
type CompanyRepository interface {
	// Create creates a new company
	Create(ctx context.Context, company *models.Company) error

	// GetByID retrieves a company by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// UserRepository handles user data operations.
// Every method that acts on behalf of a caller takes the caller's company id
// and only ever touches rows of that company.
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user of companyID
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.User, error)

	// FindByID retrieves a user regardless of company. Only for flows that
	// are authenticated by a one-time token instead of an identity.
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by globally unique email (login, password reset)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ExistsByEmail reports whether any user has email
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ListByCompany retrieves users of companyID in creation order
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.User, error)

	// Update applies patch to a user of companyID and returns the updated row
	Update(ctx context.Context, companyID, id uuid.UUID, patch models.UserPatch) (*models.User, error)

	// UpdatePassword replaces a user's password hash
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// MarkEmailVerified flags a user's email as verified
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error

	// Delete deletes a user of companyID
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// Query retrieves the entries matching filter, newest first
	Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

// SessionRepository stores refresh-token sessions
type SessionRepository interface {
	// Create stores a new session
	Create(ctx context.Context, session *models.Session) error

	// GetByID retrieves a session
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// Revoke revokes one session
	Revoke(ctx context.Context, id uuid.UUID) error

	// RevokeAllForUser revokes every session of a user and returns how many were active
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// DeleteExpired removes sessions that expired before cutoff
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActionTokenRepository stores one-time email verification and password reset tokens
type ActionTokenRepository interface {
	// Create stores a new token
	Create(ctx context.Context, token *models.ActionToken) error

	// GetByHash retrieves a token by hash and purpose
	GetByHash(ctx context.Context, purpose models.TokenPurpose, tokenHash string) (*models.ActionToken, error)

	// MarkUsed consumes a token. Returns ErrNotFound if it was already used.
	MarkUsed(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes tokens that expired or were used before cutoff
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Companies    CompanyRepository
	Users        UserRepository
	AuditLogs    AuditRepository
	Sessions     SessionRepository
	ActionTokens ActionTokenRepository
}
