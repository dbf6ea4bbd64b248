package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose distinguishes one-time tokens
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// ActionToken is a one-time token mailed to a user. Only its sha256 hash is stored.
type ActionToken struct {
	ID        uuid.UUID    `db:"id"`
	UserID    uuid.UUID    `db:"user_id"`
	Purpose   TokenPurpose `db:"purpose"`
	TokenHash string       `db:"token_hash"`
	ExpiresAt time.Time    `db:"expires_at"`
	UsedAt    *time.Time   `db:"used_at"`
	CreatedAt time.Time    `db:"created_at"`
}

// TableName returns the table name for the ActionToken model
func (ActionToken) TableName() string {
	return "action_tokens"
}

// NewActionToken creates a token record valid for ttl
func NewActionToken(userID uuid.UUID, purpose TokenPurpose, tokenHash string, ttl time.Duration) *ActionToken {
	now := time.Now().UTC()
	return &ActionToken{
		ID:        uuid.New(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Usable reports whether the token is unused and unexpired
func (t *ActionToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
