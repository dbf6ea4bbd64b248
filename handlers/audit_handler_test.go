package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services"
	"github.com/upb/tenant-platform/services/audit"
	"go.uber.org/zap"
)

func TestAuditHandler_HandleList(t *testing.T) {
	logger := zap.NewNop()

	t.Run("filters are parsed", func(t *testing.T) {
		querier := new(MockAuditQuerier)
		caller := newTestIdentity(models.RoleAdmin)
		handler := NewAuditHandler(querier, logger)

		wantFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		wantTo := time.Date(2024, 1, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)

		querier.On("Query", mock.Anything, caller.CompanyID, mock.MatchedBy(func(p audit.QueryParams) bool {
			return p.From != nil && p.From.Equal(wantFrom) &&
				p.To != nil && p.To.Equal(wantTo) &&
				p.Action != nil && *p.Action == models.AuditActionLogin &&
				p.Page == 2 && p.Limit == 50
		})).Return([]*models.AuditLog{}, nil)

		w := httptest.NewRecorder()
		handler.HandleList(w, newRequest(t, http.MethodGet,
			"/audit?from=2024-01-01&to=2024-01-31&action=LOGIN&page=2&limit=50", nil, caller))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
		querier.AssertExpectations(t)
	})

	t.Run("no filters uses defaults", func(t *testing.T) {
		querier := new(MockAuditQuerier)
		caller := newTestIdentity(models.RoleUser)
		handler := NewAuditHandler(querier, logger)

		querier.On("Query", mock.Anything, caller.CompanyID, audit.QueryParams{
			Page:  1,
			Limit: audit.DefaultQueryLimit,
		}).Return([]*models.AuditLog{
			{ID: uuid.New(), CompanyID: caller.CompanyID, Action: models.AuditActionLogin},
		}, nil)

		w := httptest.NewRecorder()
		handler.HandleList(w, newRequest(t, http.MethodGet, "/audit", nil, caller))

		assert.Equal(t, http.StatusOK, w.Code)
		querier.AssertExpectations(t)
	})

	t.Run("malformed date", func(t *testing.T) {
		querier := new(MockAuditQuerier)
		handler := NewAuditHandler(querier, logger)

		w := httptest.NewRecorder()
		handler.HandleList(w, newRequest(t, http.MethodGet, "/audit?from=yesterday", nil, newTestIdentity(models.RoleOwner)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeEnvelope(t, w).Errors, "from")
		querier.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("inverted range", func(t *testing.T) {
		querier := new(MockAuditQuerier)
		caller := newTestIdentity(models.RoleOwner)
		handler := NewAuditHandler(querier, logger)
		querier.On("Query", mock.Anything, caller.CompanyID, mock.Anything).Return(nil, services.ErrInvalidRange)

		w := httptest.NewRecorder()
		handler.HandleList(w, newRequest(t, http.MethodGet, "/audit?from=2024-02-01&to=2024-01-01", nil, caller))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing identity", func(t *testing.T) {
		handler := NewAuditHandler(new(MockAuditQuerier), logger)

		w := httptest.NewRecorder()
		handler.HandleList(w, newRequest(t, http.MethodGet, "/audit", nil, nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
