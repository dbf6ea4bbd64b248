// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
)

// UserRepository is a mock of repositories.UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, companyID, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, companyID, limit, offset)
	if users := args.Get(0); users != nil {
		return users.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, companyID, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	args := m.Called(ctx, companyID, id, patch)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	args := m.Called(ctx, companyID, id)
	return args.Error(0)
}

// CompanyRepository is a mock of repositories.CompanyRepository
type CompanyRepository struct {
	mock.Mock
}

func (m *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

func (m *CompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	args := m.Called(ctx, id)
	if company := args.Get(0); company != nil {
		return company.(*models.Company), args.Error(1)
	}
	return nil, args.Error(1)
}

// SessionRepository is a mock of repositories.SessionRepository
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, id)
	if session := args.Get(0); session != nil {
		return session.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// ActionTokenRepository is a mock of repositories.ActionTokenRepository
type ActionTokenRepository struct {
	mock.Mock
}

func (m *ActionTokenRepository) Create(ctx context.Context, token *models.ActionToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *ActionTokenRepository) GetByHash(ctx context.Context, purpose models.TokenPurpose, tokenHash string) (*models.ActionToken, error) {
	args := m.Called(ctx, purpose, tokenHash)
	if token := args.Get(0); token != nil {
		return token.(*models.ActionToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActionTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ActionTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// AuditRecorder is a mock audit sink
type AuditRecorder struct {
	mock.Mock
}

func (m *AuditRecorder) Record(entry *models.AuditLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

// TransactionManager runs fn inline without a database
type TransactionManager struct {
	Calls int
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	return fn(ctx)
}

var (
	_ repositories.UserRepository        = (*UserRepository)(nil)
	_ repositories.CompanyRepository     = (*CompanyRepository)(nil)
	_ repositories.SessionRepository     = (*SessionRepository)(nil)
	_ repositories.ActionTokenRepository = (*ActionTokenRepository)(nil)
	_ repositories.TransactionManager    = (*TransactionManager)(nil)
)
