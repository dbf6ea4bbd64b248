package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services"
	"github.com/upb/tenant-platform/utils"
	"go.uber.org/zap"
)

// TokenVerifier defines the interface for verifying access tokens
type TokenVerifier interface {
	// VerifyAccessToken validates a token and returns the identity it carries
	VerifyAccessToken(token string) (*models.Identity, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth is a middleware that requires a valid Bearer access token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token, reason := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.String("reason", reason))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		identity, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.String("reason", "token verification failed"),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", identity.UserID.String()),
			zap.String("company_id", identity.CompanyID.String()))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// RequireRoles is a middleware that lets through only identities holding one
// of roles. It must run after RequireAuth.
func (m *AuthMiddleware) RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := m.Authorize(ctx, GetIdentityFromContext(ctx), roles...); err != nil {
				if services.IsUnauthorizedError(err) {
					_ = utils.WriteUnauthorized(w, "Authentication required")
					return
				}
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize checks that identity holds one of allowed. Roles are compared by
// set membership only. Denials are logged.
func (m *AuthMiddleware) Authorize(ctx context.Context, identity *models.Identity, allowed ...models.Role) error {
	requestID := GetRequestIDFromContext(ctx)

	if identity == nil {
		m.logger.Error("identity not found in context",
			zap.String("request_id", requestID))
		return services.ErrUnauthorized
	}

	if identity.HasRole(allowed...) {
		return nil
	}

	required := make([]string, len(allowed))
	for i, role := range allowed {
		required[i] = string(role)
	}
	m.logger.Warn("insufficient permissions",
		zap.String("request_id", requestID),
		zap.String("role", string(identity.Role)),
		zap.Strings("required_roles", required),
		zap.String("user_id", identity.UserID.String()),
		zap.String("company_id", identity.CompanyID.String()))

	return services.ErrInsufficientPermissions
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// On failure it returns an empty token and the reason.
func extractBearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", "malformed authorization header"
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}
