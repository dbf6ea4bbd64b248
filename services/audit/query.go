package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/repositories"
	"github.com/upb/tenant-platform/services"
	"go.uber.org/zap"
)

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000

	dateOnlyLayout = "2006-01-02"
)

// QueryParams holds the optional audit filters supplied by a caller
type QueryParams struct {
	From   *time.Time
	To     *time.Time
	Action *models.AuditAction
	Page   int
	Limit  int
}

// QueryService reads audit entries for the caller's company
type QueryService struct {
	auditRepo repositories.AuditRepository
	logger    *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(auditRepo repositories.AuditRepository, logger *zap.Logger) *QueryService {
	return &QueryService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Query returns the entries of companyID matching params, newest first
func (s *QueryService) Query(ctx context.Context, companyID uuid.UUID, params QueryParams) ([]*models.AuditLog, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, services.ErrInvalidRange
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	offset, err := services.PageOffset(params.Page, limit)
	if err != nil {
		return nil, err
	}

	logs, err := s.auditRepo.Query(ctx, models.AuditFilter{
		CompanyID: companyID,
		From:      params.From,
		To:        params.To,
		Action:    params.Action,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.logger.Error("failed to query audit logs",
			zap.String("company_id", companyID.String()),
			zap.Error(err))
		return nil, services.WrapInternal("failed to query audit logs", err)
	}

	return logs, nil
}

// ParseTimeBound parses an RFC3339 timestamp or a YYYY-MM-DD date.
// A date-only upper bound is extended to the last instant of that day.
// Empty input yields nil.
func ParseTimeBound(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}

	t, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// ParseAction reads an action filter. Matching is exact, so "login" does not
// select LOGIN entries. Empty input yields nil.
func ParseAction(raw string) *models.AuditAction {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	action := models.AuditAction(raw)
	return &action
}
