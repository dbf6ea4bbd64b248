package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCompanyRegistered AuditAction = "COMPANY_REGISTERED"
	AuditActionLogin             AuditAction = "LOGIN"
	AuditActionLogout            AuditAction = "LOGOUT"
	AuditActionEmailVerified     AuditAction = "EMAIL_VERIFIED"
	AuditActionPasswordReset     AuditAction = "PASSWORD_RESET"
	AuditActionUserCreated       AuditAction = "USER_CREATED"
	AuditActionUserUpdated       AuditAction = "USER_UPDATED"
	AuditActionUserDeleted       AuditAction = "USER_DELETED"
)

// Audited entity names
const (
	EntityUser    = "user"
	EntityCompany = "company"
	EntitySession = "session"
)

// AuditLog represents an append-only audit trail entry
type AuditLog struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	UserID    *uuid.UUID             `json:"userId,omitempty" db:"user_id"`
	CompanyID uuid.UUID              `json:"companyId" db:"company_id"`
	Action    AuditAction            `json:"action" db:"action"`
	Entity    *string                `json:"entity,omitempty" db:"entity"`
	EntityID  *string                `json:"entityId,omitempty" db:"entity_id"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(companyID uuid.UUID, action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		CompanyID: companyID,
		Action:    action,
		Metadata:  map[string]interface{}{},
		CreatedAt: time.Now().UTC(),
	}
}

// WithUser sets the acting user
func (a *AuditLog) WithUser(userID uuid.UUID) *AuditLog {
	a.UserID = &userID
	return a
}

// WithEntity sets the affected entity
func (a *AuditLog) WithEntity(entity string, entityID string) *AuditLog {
	a.Entity = &entity
	if entityID != "" {
		a.EntityID = &entityID
	}
	return a
}

// WithMeta adds a metadata key
func (a *AuditLog) WithMeta(key string, value interface{}) *AuditLog {
	if a.Metadata == nil {
		a.Metadata = map[string]interface{}{}
	}
	a.Metadata[key] = value
	return a
}

// WithRequest records request metadata when present
func (a *AuditLog) WithRequest(meta RequestMeta) *AuditLog {
	if meta.RequestID != "" {
		a.WithMeta("requestId", meta.RequestID)
	}
	if meta.IPAddress != "" {
		a.WithMeta("ip", meta.IPAddress)
	}
	if meta.UserAgent != "" {
		a.WithMeta("userAgent", meta.UserAgent)
	}
	return a
}

// AuditFilter selects audit entries for one company.
// From and To are inclusive bounds on CreatedAt.
type AuditFilter struct {
	CompanyID uuid.UUID
	From      *time.Time
	To        *time.Time
	Action    *AuditAction
	Limit     int
	Offset    int
}
