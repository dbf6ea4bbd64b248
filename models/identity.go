package models

import "github.com/google/uuid"

// Identity is the verified caller derived from an access token.
// It lives only in the request context and is never persisted.
type Identity struct {
	UserID    uuid.UUID `json:"userId"`
	CompanyID uuid.UUID `json:"companyId"`
	Role      Role      `json:"role"`
}

// HasRole reports whether the identity's role is one of roles
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IsSelf reports whether id names the identity's own user
func (i *Identity) IsSelf(id uuid.UUID) bool {
	return i != nil && i.UserID == id
}
