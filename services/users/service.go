// Package users implements company-scoped user management.
// Every operation is bounded by the caller's company id; no method accepts a
// company id from request input.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/auth"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"github.com/upb/tenant-platform/services"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// AuditRecorder queues audit entries
type AuditRecorder interface {
	Record(entry *models.AuditLog) error
}

// CreateInput holds the fields of a new user
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     *models.Role
}

// Service manages users within a company
type Service struct {
	users    repositories.UserRepository
	hasher   auth.PasswordHasher
	recorder AuditRecorder
	logger   *zap.Logger
}

// NewService creates a new user service
func NewService(users repositories.UserRepository, hasher auth.PasswordHasher, recorder AuditRecorder, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		recorder: recorder,
		logger:   logger,
	}
}

// List returns at most limit users of companyID, skipping (page-1)*limit
func (s *Service) List(ctx context.Context, companyID uuid.UUID, page, limit int) ([]*models.User, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	offset, err := services.PageOffset(page, limit)
	if err != nil {
		return nil, err
	}

	users, err := s.users.ListByCompany(ctx, companyID, limit, offset)
	if err != nil {
		return nil, s.internal(ctx, "failed to list users", err)
	}
	return users, nil
}

// Get returns a user of companyID. Users of other companies are NotFound.
func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, s.internal(ctx, "failed to get user", err)
	}
	return user, nil
}

// Create adds a user to the actor's company. Role defaults to USER.
func (s *Service) Create(ctx context.Context, actor *models.Identity, input CreateInput) (*models.User, error) {
	if actor == nil {
		return nil, services.ErrUnauthorized
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, services.BlankFieldError("name")
	}

	role := models.RoleUser
	if input.Role != nil {
		if !assignable(*input.Role) {
			return nil, services.ErrInvalidRole
		}
		role = *input.Role
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, services.ErrPasswordTooLong
		}
		return nil, s.internal(ctx, "failed to hash password", err)
	}

	user := models.NewUser(actor.CompanyID, name, input.Email, hash, role)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateEmail
		}
		return nil, s.internal(ctx, "failed to create user", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("company_id", user.CompanyID.String()),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.UserID.String()))

	s.record(ctx, models.NewAuditLog(actor.CompanyID, models.AuditActionUserCreated).
		WithUser(actor.UserID).
		WithEntity(models.EntityUser, user.ID.String()).
		WithMeta("role", string(user.Role)))

	return user, nil
}

// Update applies the provided fields to a user of the actor's company
func (s *Service) Update(ctx context.Context, actor *models.Identity, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	if actor == nil {
		return nil, services.ErrUnauthorized
	}
	if patch.IsEmpty() {
		return nil, services.ErrEmptyUpdate
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, services.BlankFieldError("name")
		}
		patch.Name = &name
	}

	if patch.Role != nil {
		if actor.Role == models.RoleUser {
			return nil, services.ErrInsufficientPermissions
		}
		if !assignable(*patch.Role) {
			return nil, services.ErrInvalidRole
		}
		target, err := s.Get(ctx, actor.CompanyID, id)
		if err != nil {
			return nil, err
		}
		if target.Role == models.RoleOwner {
			return nil, services.ErrInsufficientPermissions
		}
	}

	user, err := s.users.Update(ctx, actor.CompanyID, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, services.ErrUserNotFound
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, services.ErrDuplicateEmail
		}
		return nil, s.internal(ctx, "failed to update user", err)
	}

	s.record(ctx, models.NewAuditLog(actor.CompanyID, models.AuditActionUserUpdated).
		WithUser(actor.UserID).
		WithEntity(models.EntityUser, id.String()).
		WithMeta("fields", patch.Fields()))

	return user, nil
}

// Delete removes a user of the actor's company
func (s *Service) Delete(ctx context.Context, actor *models.Identity, id uuid.UUID) error {
	if actor == nil {
		return services.ErrUnauthorized
	}
	if actor.IsSelf(id) && actor.Role == models.RoleOwner {
		return services.ErrCannotDeleteSelf
	}

	if err := s.users.Delete(ctx, actor.CompanyID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrUserNotFound
		}
		return s.internal(ctx, "failed to delete user", err)
	}

	s.logger.Info("user deleted",
		zap.String("user_id", id.String()),
		zap.String("company_id", actor.CompanyID.String()),
		zap.String("actor_id", actor.UserID.String()))

	s.record(ctx, models.NewAuditLog(actor.CompanyID, models.AuditActionUserDeleted).
		WithUser(actor.UserID).
		WithEntity(models.EntityUser, id.String()))

	return nil
}

// assignable reports whether role may be granted through user management
func assignable(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleUser
}

func (s *Service) record(ctx context.Context, entry *models.AuditLog) {
	if s.recorder == nil {
		return
	}
	entry.WithRequest(models.RequestMetaFromContext(ctx))
	if err := s.recorder.Record(entry); err != nil {
		s.logger.Warn("failed to record audit event",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func (s *Service) internal(ctx context.Context, message string, err error) error {
	s.logger.Error(message,
		zap.String("request_id", models.RequestMetaFromContext(ctx).RequestID),
		zap.Error(err))
	return services.WrapInternal(message, err)
}
