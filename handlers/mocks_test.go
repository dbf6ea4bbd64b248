package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/tenant-platform/middleware"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services/audit"
	"github.com/upb/tenant-platform/services/identity"
	"github.com/upb/tenant-platform/services/users"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) List(ctx context.Context, companyID uuid.UUID, page, limit int) ([]*models.User, error) {
	args := m.Called(ctx, companyID, page, limit)
	if list := args.Get(0); list != nil {
		return list.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, companyID, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, companyID, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Create(ctx context.Context, actor *models.Identity, input users.CreateInput) (*models.User, error) {
	args := m.Called(ctx, actor, input)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, actor *models.Identity, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	args := m.Called(ctx, actor, id, patch)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, actor *models.Identity, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

type MockAuditQuerier struct {
	mock.Mock
}

func (m *MockAuditQuerier) Query(ctx context.Context, companyID uuid.UUID, params audit.QueryParams) ([]*models.AuditLog, error) {
	args := m.Called(ctx, companyID, params)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, input identity.RegisterInput) (*identity.AuthResult, error) {
	args := m.Called(ctx, input)
	if result := args.Get(0); result != nil {
		return result.(*identity.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (*identity.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if result := args.Get(0); result != nil {
		return result.(*identity.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) Refresh(ctx context.Context, refreshToken string) (*identity.AccessToken, error) {
	args := m.Called(ctx, refreshToken)
	if token := args.Get(0); token != nil {
		return token.(*identity.AccessToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) Me(ctx context.Context, caller *models.Identity) (*models.User, error) {
	args := m.Called(ctx, caller)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) Logout(ctx context.Context, caller *models.Identity) error {
	return m.Called(ctx, caller).Error(0)
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, rawToken string) error {
	return m.Called(ctx, rawToken).Error(0)
}

func (m *MockAccountService) ForgotPassword(ctx context.Context, email string) {
	m.Called(ctx, email)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, rawToken, password string) error {
	return m.Called(ctx, rawToken, password).Error(0)
}

func newTestIdentity(role models.Role) *models.Identity {
	return &models.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: role}
}

// newRequest builds a request with an optional JSON body and caller
func newRequest(t *testing.T, method, target string, body interface{}, caller *models.Identity) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), caller))
	}
	return req
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Errors  map[string]interface{} `json:"errors"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}
