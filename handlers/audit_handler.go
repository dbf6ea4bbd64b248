package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/middleware"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services/audit"
	"github.com/upb/tenant-platform/utils"
	"go.uber.org/zap"
)

// AuditQuerier reads audit entries of one company
type AuditQuerier interface {
	Query(ctx context.Context, companyID uuid.UUID, params audit.QueryParams) ([]*models.AuditLog, error)
}

// AuditHandler handles /audit
type AuditHandler struct {
	querier AuditQuerier
	logger  *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(querier AuditQuerier, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		querier: querier,
		logger:  logger,
	}
}

// HandleList handles GET /audit?from&to&action&page&limit
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}
	identity := middleware.GetIdentityFromContext(r.Context())
	q := r.URL.Query()

	from, err := audit.ParseTimeBound(q.Get("from"), false)
	if err != nil {
		HandleValidationError(w, utils.NewFieldError("from", "from must be RFC3339 or YYYY-MM-DD"), h.logger)
		return
	}
	to, err := audit.ParseTimeBound(q.Get("to"), true)
	if err != nil {
		HandleValidationError(w, utils.NewFieldError("to", "to must be RFC3339 or YYYY-MM-DD"), h.logger)
		return
	}

	page, err := utils.ParsePagination(r, audit.DefaultQueryLimit, audit.MaxQueryLimit)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	logs, err := h.querier.Query(r.Context(), identity.CompanyID, audit.QueryParams{
		From:   from,
		To:     to,
		Action: audit.ParseAction(q.Get("action")),
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Audit logs retrieved", logs)
}
