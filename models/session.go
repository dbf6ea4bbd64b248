package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session tracks an issued refresh token. ID equals the token's jti claim.
type Session struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	CompanyID uuid.UUID  `json:"companyId" db:"company_id"`
	UserAgent string     `json:"userAgent" db:"user_agent"`
	IPAddress string     `json:"ipAddress" db:"ip_address"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	RevokedAt *time.Time `json:"revokedAt,omitempty" db:"revoked_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// TableName returns the table name for the Session model
func (Session) TableName() string {
	return "sessions"
}

// IsActive reports whether the session can still mint access tokens
func (s *Session) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// RequestMeta carries client details captured at the HTTP edge
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta attaches client details to ctx
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the client details attached to ctx, if any
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
