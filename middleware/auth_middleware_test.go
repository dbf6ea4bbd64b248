package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyAccessToken(token string) (*models.Identity, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func newIdentity(role models.Role) *models.Identity {
	return &models.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: role}
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid bearer token attaches identity", func(t *testing.T) {
		mockVerifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(mockVerifier, logger)
		identity := newIdentity(models.RoleAdmin)

		mockVerifier.On("VerifyAccessToken", "valid-token").Return(identity, nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, identity, GetIdentityFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockVerifier.AssertExpectations(t)
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		mockVerifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(mockVerifier, logger)
		mockVerifier.On("VerifyAccessToken", "valid-token").Return(newIdentity(models.RoleUser), nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	rejected := []struct {
		name   string
		header string
		cookie bool
	}{
		{name: "missing header", header: ""},
		{name: "no scheme", header: "valid-token"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer", header: "Bearer   "},
		{name: "cookie is ignored", header: "", cookie: true},
	}

	for _, tt := range rejected {
		t.Run(tt.name+" returns 401", func(t *testing.T) {
			mockVerifier := new(MockTokenVerifier)
			middleware := NewAuthMiddleware(mockVerifier, logger)

			handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: "valid-token"})
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
			mockVerifier.AssertNotCalled(t, "VerifyAccessToken", mock.Anything)
		})
	}

	t.Run("invalid token returns 401 and never logs the token", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		mockVerifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(mockVerifier, zap.New(core))

		mockVerifier.On("VerifyAccessToken", "secret-token-value").
			Return(nil, errors.New("signature is invalid"))

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer secret-token-value")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		entries := logs.FilterMessage("authentication failed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		for _, entry := range logs.All() {
			assert.NotContains(t, entry.Message, "secret-token-value")
			for _, value := range entry.ContextMap() {
				assert.NotContains(t, value, "secret-token-value")
			}
		}
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		role    models.Role
		allowed []models.Role
		wantErr error
	}{
		{name: "owner in owner-only", role: models.RoleOwner, allowed: []models.Role{models.RoleOwner}},
		{name: "admin in admin-owner", role: models.RoleAdmin, allowed: []models.Role{models.RoleAdmin, models.RoleOwner}},
		{name: "admin not in owner-only", role: models.RoleAdmin, allowed: []models.Role{models.RoleOwner}, wantErr: services.ErrInsufficientPermissions},
		{name: "user not in admin-owner", role: models.RoleUser, allowed: []models.Role{models.RoleAdmin, models.RoleOwner}, wantErr: services.ErrInsufficientPermissions},
		{name: "owner not implied by hierarchy", role: models.RoleOwner, allowed: []models.Role{models.RoleUser}, wantErr: services.ErrInsufficientPermissions},
		{name: "empty set denies everyone", role: models.RoleOwner, allowed: nil, wantErr: services.ErrInsufficientPermissions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAuthMiddleware(nil, zap.NewNop())

			err := middleware.Authorize(ctx, newIdentity(tt.role), tt.allowed...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, services.IsForbiddenError(err))
		})
	}

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		middleware := NewAuthMiddleware(nil, zap.NewNop())

		err := middleware.Authorize(ctx, nil, models.RoleUser)
		assert.True(t, services.IsUnauthorizedError(err))
	})

	t.Run("denial is logged with roles and tenant", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		middleware := NewAuthMiddleware(nil, zap.New(core))
		identity := newIdentity(models.RoleUser)

		_ = middleware.Authorize(ctx, identity, models.RoleOwner)

		entries := logs.FilterMessage("insufficient permissions").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "USER", fields["role"])
		assert.Equal(t, identity.UserID.String(), fields["user_id"])
		assert.Equal(t, identity.CompanyID.String(), fields["company_id"])
	})
}

func TestRequireRoles(t *testing.T) {
	logger := zap.NewNop()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		identity   *models.Identity
		wantStatus int
	}{
		{name: "owner allowed", identity: newIdentity(models.RoleOwner), wantStatus: http.StatusOK},
		{name: "user forbidden", identity: newIdentity(models.RoleUser), wantStatus: http.StatusForbidden},
		{name: "no identity", identity: nil, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAuthMiddleware(nil, logger)
			handler := middleware.RequireRoles(models.RoleOwner)(next)

			req := httptest.NewRequest(http.MethodDelete, "/users/x", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.identity))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
