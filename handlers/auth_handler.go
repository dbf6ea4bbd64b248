package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/tenant-platform/middleware"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services/identity"
	"github.com/upb/tenant-platform/utils"
	"go.uber.org/zap"
)

// AccountService implements the account flows behind /auth
type AccountService interface {
	Register(ctx context.Context, input identity.RegisterInput) (*identity.AuthResult, error)
	Login(ctx context.Context, email, password string) (*identity.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.AccessToken, error)
	Me(ctx context.Context, caller *models.Identity) (*models.User, error)
	Logout(ctx context.Context, caller *models.Identity) error
	VerifyEmail(ctx context.Context, rawToken string) error
	ForgotPassword(ctx context.Context, email string)
	ResetPassword(ctx context.Context, rawToken, password string) error
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=72,pwbytes"`
	CompanyName string `json:"companyName" validate:"required,notblank,max=100"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password/{token}
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72,pwbytes"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User                  *models.PublicUser `json:"user"`
	Company               *models.Company    `json:"company,omitempty"`
	AccessToken           string             `json:"accessToken"`
	AccessTokenExpiresAt  time.Time          `json:"accessTokenExpiresAt"`
	RefreshToken          string             `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time          `json:"refreshTokenExpiresAt"`
}

// AuthHandler handles /auth
type AuthHandler struct {
	service AccountService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Register(r.Context(), identity.RegisterInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, "Registration successful", newAuthResponse(result))
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Login successful", newAuthResponse(result))
}

// HandleRefresh handles POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	token, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Token refreshed", token)
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}

	user, err := h.service.Me(r.Context(), middleware.GetIdentityFromContext(r.Context()))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "User retrieved", user.Public())
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}

	if err := h.service.Logout(r.Context(), middleware.GetIdentityFromContext(r.Context())); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Logged out", nil)
}

// HandleVerifyEmail handles GET /auth/verify-email/{token}
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Email verified", nil)
}

// HandleForgotPassword handles POST /auth/forgot-password.
// The answer is the same whether or not the email exists.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	h.service.ForgotPassword(r.Context(), req.Email)

	_ = utils.WriteOK(w, "If the email is registered, a reset link has been sent", nil)
}

// HandleResetPassword handles POST /auth/reset-password/{token}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Password has been reset", nil)
}

func newAuthResponse(result *identity.AuthResult) AuthResponse {
	return AuthResponse{
		User:                  result.User.Public(),
		Company:               result.Company,
		AccessToken:           result.Tokens.AccessToken,
		AccessTokenExpiresAt:  result.Tokens.AccessTokenExpiresAt,
		RefreshToken:          result.Tokens.RefreshToken,
		RefreshTokenExpiresAt: result.Tokens.RefreshTokenExpiresAt,
	}
}
