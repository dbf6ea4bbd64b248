package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/tenant-platform/middleware"
	"github.com/upb/tenant-platform/models"
	"github.com/upb/tenant-platform/services/users"
	"github.com/upb/tenant-platform/utils"
	"go.uber.org/zap"
)

// UserService is the tenant-scoped user management used by UserHandler
type UserService interface {
	List(ctx context.Context, companyID uuid.UUID, page, limit int) ([]*models.User, error)
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, actor *models.Identity, input users.CreateInput) (*models.User, error)
	Update(ctx context.Context, actor *models.Identity, id uuid.UUID, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, actor *models.Identity, id uuid.UUID) error
}

// Authorizer checks role-set membership
type Authorizer interface {
	Authorize(ctx context.Context, identity *models.Identity, allowed ...models.Role) error
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	Name     string  `json:"name" validate:"required,notblank,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=72,pwbytes"`
	Role     *string `json:"role,omitempty"`
}

// UpdateUserRequest is the body of PATCH /users/{id}
type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Role  *string `json:"role,omitempty"`
}

// UserHandler handles /users
type UserHandler struct {
	service    UserService
	authorizer Authorizer
	logger     *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, authorizer Authorizer, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service:    service,
		authorizer: authorizer,
		logger:     logger,
	}
}

// HandleList handles GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}
	identity := middleware.GetIdentityFromContext(r.Context())

	page, err := utils.ParsePagination(r, users.DefaultPageLimit, users.MaxPageLimit)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	list, err := h.service.List(r.Context(), identity.CompanyID, page.Page, page.Limit)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "Users retrieved", models.PublicUsers(list))
}

// HandleGet handles GET /users/{id}. Callers other than ADMIN and OWNER may
// only read their own record.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}
	identity := middleware.GetIdentityFromContext(r.Context())

	id, ok := h.targetID(w, r, identity)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), identity.CompanyID, id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "User retrieved", user.Public())
}

// HandleCreate handles POST /users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}
	identity := middleware.GetIdentityFromContext(r.Context())

	var req CreateUserRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	input := users.CreateInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Role != nil {
		role, err := parseRole(*req.Role)
		if err != nil {
			HandleValidationError(w, err, h.logger)
			return
		}
		input.Role = &role
	}

	user, err := h.service.Create(r.Context(), identity, input)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, "User created", user.Public())
}

// HandleUpdate handles PATCH /users/{id}. Callers other than ADMIN and OWNER
// may only update their own profile.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}
	identity := middleware.GetIdentityFromContext(r.Context())

	id, ok := h.targetID(w, r, identity)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	patch := models.UserPatch{Name: req.Name, Email: req.Email}
	if req.Role != nil {
		role, err := parseRole(*req.Role)
		if err != nil {
			HandleValidationError(w, err, h.logger)
			return
		}
		patch.Role = &role
	}

	user, err := h.service.Update(r.Context(), identity, id, patch)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, "User updated", user.Public())
}

// HandleDelete handles DELETE /users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}
	identity := middleware.GetIdentityFromContext(r.Context())

	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// targetID parses the path id and applies the self-access rule
func (h *UserHandler) targetID(w http.ResponseWriter, r *http.Request, identity *models.Identity) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return uuid.Nil, false
	}

	if !identity.IsSelf(id) {
		if err := h.authorizer.Authorize(r.Context(), identity, models.RoleAdmin, models.RoleOwner); err != nil {
			HandleServiceError(w, r, err, h.logger)
			return uuid.Nil, false
		}
	}
	return id, true
}

func parseRole(raw string) (models.Role, error) {
	role, ok := models.ParseRole(raw)
	if !ok {
		return "", utils.NewFieldError("role", "role must be one of: OWNER ADMIN USER")
	}
	return role, nil
}
