// Package identity implements the account flows: registration, login,
// token refresh, logout, email verification and password reset.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/auth"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"github.com/upb/tenant-platform/services"
	"go.uber.org/zap"
)

// TokenCodec issues and verifies the signed tokens handed to clients
type TokenCodec interface {
	IssueAccessToken(user *models.User) (*auth.IssuedToken, error)
	IssueRefreshToken(user *models.User) (*auth.IssuedToken, error)
	VerifyRefreshToken(token string) (*models.Identity, uuid.UUID, error)
}

// Notifier delivers account emails
type Notifier interface {
	SendVerification(ctx context.Context, user *models.User, rawToken string) error
	SendPasswordReset(ctx context.Context, user *models.User, rawToken string) error
}

// AuditRecorder queues audit entries
type AuditRecorder interface {
	Record(entry *models.AuditLog) error
}

// Config holds lifetimes of one-time tokens
type Config struct {
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

// Dependencies groups the collaborators of the Service
type Dependencies struct {
	Companies    repositories.CompanyRepository
	Users        repositories.UserRepository
	Sessions     repositories.SessionRepository
	ActionTokens repositories.ActionTokenRepository
	TxManager    repositories.TransactionManager
	Codec        TokenCodec
	Hasher       auth.PasswordHasher
	Notifier     Notifier
	Recorder     AuditRecorder
}

// RegisterInput holds the fields of a registration
type RegisterInput struct {
	Email       string
	Name        string
	Password    string
	CompanyName string
}

// TokenPair is an access token together with its refresh token
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	User    *models.User
	Company *models.Company
	Tokens  TokenPair
}

// AccessToken is returned by Refresh
type AccessToken struct {
	Token     string    `json:"accessToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service implements the account flows
type Service struct {
	deps   Dependencies
	config Config
	logger *zap.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new account service
func NewService(deps Dependencies, config Config, logger *zap.Logger) *Service {
	if config.VerificationTokenTTL <= 0 {
		config.VerificationTokenTTL = 24 * time.Hour
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = time.Hour
	}
	return &Service{
		deps:   deps,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a company with its owner and signs the owner in
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, services.BlankFieldError("name")
	}
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	if input.CompanyName == "" {
		return nil, services.BlankFieldError("companyName")
	}

	exists, err := s.deps.Users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, s.internal(ctx, "failed to check email", err)
	}
	if exists {
		return nil, services.ErrDuplicateEmail
	}

	hash, err := s.deps.Hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, services.ErrPasswordTooLong
		}
		return nil, s.internal(ctx, "failed to hash password", err)
	}

	company := models.NewCompany(input.CompanyName)
	owner := models.NewUser(company.ID, input.Name, input.Email, hash, models.RoleOwner)

	err = s.deps.TxManager.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.deps.Companies.Create(ctx, company); err != nil {
			return err
		}
		return s.deps.Users.Create(ctx, owner)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateEmail
		}
		return nil, s.internal(ctx, "failed to register company", err)
	}

	s.logger.Info("company registered",
		zap.String("company_id", company.ID.String()),
		zap.String("owner_id", owner.ID.String()))

	s.sendVerification(ctx, owner)

	tokens, err := s.startSession(ctx, owner)
	if err != nil {
		return nil, err
	}

	s.record(ctx, models.NewAuditLog(company.ID, models.AuditActionCompanyRegistered).
		WithUser(owner.ID).
		WithEntity(models.EntityCompany, company.ID.String()))

	return &AuthResult{User: owner, Company: company, Tokens: *tokens}, nil
}

// Login checks credentials and starts a session.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, s.internal(ctx, "failed to load user", err)
		}
		// Unknown emails take as long as wrong passwords
		_ = s.deps.Hasher.Compare(s.dummyPasswordHash(), password)
		return nil, services.ErrInvalidCredentials
	}

	if err := s.deps.Hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, services.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "failed to compare password", err)
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, models.NewAuditLog(user.CompanyID, models.AuditActionLogin).
		WithUser(user.ID).
		WithEntity(models.EntitySession, ""))

	return &AuthResult{User: user, Tokens: *tokens}, nil
}

// Refresh exchanges a refresh token for a new access token.
// The role is re-read so demotions take effect on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	claimed, sessionID, err := s.deps.Codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, services.ErrInvalidToken
	}

	session, err := s.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrSessionRevoked
		}
		return nil, s.internal(ctx, "failed to load session", err)
	}
	if session.UserID != claimed.UserID || !session.IsActive(s.now()) {
		return nil, services.ErrSessionRevoked
	}

	user, err := s.deps.Users.GetByID(ctx, claimed.CompanyID, claimed.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrSessionRevoked
		}
		return nil, s.internal(ctx, "failed to load user", err)
	}

	access, err := s.deps.Codec.IssueAccessToken(user)
	if err != nil {
		return nil, s.internal(ctx, "failed to issue access token", err)
	}

	return &AccessToken{Token: access.Token, ExpiresAt: access.ExpiresAt}, nil
}

// Me returns the caller's own user record
func (s *Service) Me(ctx context.Context, identity *models.Identity) (*models.User, error) {
	if identity == nil {
		return nil, services.ErrUnauthorized
	}

	user, err := s.deps.Users.GetByID(ctx, identity.CompanyID, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUnauthorized
		}
		return nil, s.internal(ctx, "failed to load user", err)
	}
	return user, nil
}

// Logout revokes every session of the caller
func (s *Service) Logout(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return services.ErrUnauthorized
	}

	revoked, err := s.deps.Sessions.RevokeAllForUser(ctx, identity.UserID)
	if err != nil {
		return s.internal(ctx, "failed to revoke sessions", err)
	}

	s.logger.Info("user logged out",
		zap.String("user_id", identity.UserID.String()),
		zap.Int64("sessions_revoked", revoked))

	s.record(ctx, models.NewAuditLog(identity.CompanyID, models.AuditActionLogout).
		WithUser(identity.UserID).
		WithMeta("sessionsRevoked", revoked))

	return nil
}

// VerifyEmail redeems an email verification token
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	token, err := s.redeemable(ctx, models.PurposeEmailVerification, rawToken)
	if err != nil {
		return err
	}

	user, err := s.deps.Users.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrTokenNotFound
		}
		return s.internal(ctx, "failed to load user", err)
	}

	err = s.deps.TxManager.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.deps.ActionTokens.MarkUsed(ctx, token.ID); err != nil {
			return err
		}
		return s.deps.Users.MarkEmailVerified(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrTokenExpired
		}
		return s.internal(ctx, "failed to verify email", err)
	}

	s.record(ctx, models.NewAuditLog(user.CompanyID, models.AuditActionEmailVerified).
		WithUser(user.ID).
		WithEntity(models.EntityUser, user.ID.String()))

	return nil
}

// ForgotPassword mails a reset link when the email belongs to a user.
// It never reports whether the email exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Error("failed to load user for password reset", zap.Error(err))
		}
		return
	}

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", zap.Error(err))
		return
	}

	token := models.NewActionToken(user.ID, models.PurposePasswordReset, hash, s.config.ResetTokenTTL)
	if err := s.deps.ActionTokens.Create(ctx, token); err != nil {
		s.logger.Error("failed to store reset token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return
	}

	if err := s.deps.Notifier.SendPasswordReset(ctx, user, raw); err != nil {
		s.logger.Error("failed to send reset email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}
}

// ResetPassword redeems a reset token, sets the new password and signs the
// user out everywhere
func (s *Service) ResetPassword(ctx context.Context, rawToken, password string) error {
	if len(password) > auth.MaxPasswordBytes {
		return services.ErrPasswordTooLong
	}

	token, err := s.redeemable(ctx, models.PurposePasswordReset, rawToken)
	if err != nil {
		return err
	}

	user, err := s.deps.Users.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrTokenNotFound
		}
		return s.internal(ctx, "failed to load user", err)
	}

	hash, err := s.deps.Hasher.Hash(password)
	if err != nil {
		return s.internal(ctx, "failed to hash password", err)
	}

	err = s.deps.TxManager.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.deps.ActionTokens.MarkUsed(ctx, token.ID); err != nil {
			return err
		}
		return s.deps.Users.UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrTokenExpired
		}
		return s.internal(ctx, "failed to reset password", err)
	}

	if _, err := s.deps.Sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to revoke sessions after password reset",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}

	s.record(ctx, models.NewAuditLog(user.CompanyID, models.AuditActionPasswordReset).
		WithUser(user.ID).
		WithEntity(models.EntityUser, user.ID.String()))

	return nil
}

// redeemable looks up an unused, unexpired one-time token
func (s *Service) redeemable(ctx context.Context, purpose models.TokenPurpose, rawToken string) (*models.ActionToken, error) {
	if rawToken == "" {
		return nil, services.ErrTokenNotFound
	}

	token, err := s.deps.ActionTokens.GetByHash(ctx, purpose, auth.HashOpaqueToken(rawToken))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTokenNotFound
		}
		return nil, s.internal(ctx, "failed to load token", err)
	}
	if !token.Usable(s.now()) {
		return nil, services.ErrTokenExpired
	}
	return token, nil
}

// startSession issues a token pair and persists the refresh session
func (s *Service) startSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.deps.Codec.IssueAccessToken(user)
	if err != nil {
		return nil, s.internal(ctx, "failed to issue access token", err)
	}
	refresh, err := s.deps.Codec.IssueRefreshToken(user)
	if err != nil {
		return nil, s.internal(ctx, "failed to issue refresh token", err)
	}

	meta := models.RequestMetaFromContext(ctx)
	session := &models.Session{
		ID:        refresh.ID,
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.deps.Sessions.Create(ctx, session); err != nil {
		return nil, s.internal(ctx, "failed to store session", err)
	}

	return &TokenPair{
		AccessToken:           access.Token,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          refresh.Token,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

// sendVerification issues and mails a verification token. Failures are logged
// so registration still succeeds.
func (s *Service) sendVerification(ctx context.Context, user *models.User) {
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", zap.Error(err))
		return
	}

	token := models.NewActionToken(user.ID, models.PurposeEmailVerification, hash, s.config.VerificationTokenTTL)
	if err := s.deps.ActionTokens.Create(ctx, token); err != nil {
		s.logger.Error("failed to store verification token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return
	}

	if err := s.deps.Notifier.SendVerification(ctx, user, raw); err != nil {
		s.logger.Error("failed to send verification email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.deps.Hasher.Hash("not-a-real-password")
		if err != nil {
			s.logger.Warn("failed to prepare dummy hash", zap.Error(err))
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Service) record(ctx context.Context, entry *models.AuditLog) {
	if s.deps.Recorder == nil {
		return
	}
	entry.WithRequest(models.RequestMetaFromContext(ctx))
	if err := s.deps.Recorder.Record(entry); err != nil {
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
