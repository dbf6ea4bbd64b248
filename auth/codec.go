// Package auth issues and verifies the signed tokens that carry a caller's
// identity, and hashes passwords and one-time tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/tenant-platform/models"
)

// ErrInvalidToken is the single error returned for any token that cannot be
// trusted: malformed, expired, wrongly signed, or of the wrong type.
var ErrInvalidToken = errors.New("invalid token")

// TokenType distinguishes access tokens from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents the JWT payload
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"uid"`
	CompanyID string    `json:"cid"`
	Role      string    `json:"role"`
	Type      TokenType `json:"typ"`
}

// CodecConfig holds signing configuration
type CodecConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// IssuedToken is a signed token together with its id and expiry
type IssuedToken struct {
	Token     string
	ID        uuid.UUID
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 access and refresh tokens
type TokenCodec struct {
	config CodecConfig
	now    func() time.Time
}

// NewTokenCodec creates a new TokenCodec
func NewTokenCodec(config CodecConfig) *TokenCodec {
	return &TokenCodec{
		config: config,
		now:    time.Now,
	}
}

// IssueAccessToken signs a short-lived access token for user
func (c *TokenCodec) IssueAccessToken(user *models.User) (*IssuedToken, error) {
	return c.issue(user, TokenTypeAccess, c.config.AccessTTL, c.config.AccessSecret)
}

// IssueRefreshToken signs a refresh token for user. The returned ID is the jti
// claim and identifies the server-side session.
func (c *TokenCodec) IssueRefreshToken(user *models.User) (*IssuedToken, error) {
	return c.issue(user, TokenTypeRefresh, c.config.RefreshTTL, c.config.RefreshSecret)
}

func (c *TokenCodec) issue(user *models.User, typ TokenType, ttl time.Duration, secret string) (*IssuedToken, error) {
	if user == nil {
		return nil, errors.New("issue token: nil user")
	}

	now := c.now()
	expiresAt := now.Add(ttl)
	id := uuid.New()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    c.config.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    user.ID.String(),
		CompanyID: user.CompanyID.String(),
		Role:      string(user.Role),
		Type:      typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", typ, err)
	}

	return &IssuedToken{Token: signed, ID: id, ExpiresAt: expiresAt}, nil
}

// VerifyAccessToken validates an access token and returns the identity it carries
func (c *TokenCodec) VerifyAccessToken(token string) (*models.Identity, error) {
	claims, err := c.parse(token, TokenTypeAccess, c.config.AccessSecret)
	if err != nil {
		return nil, err
	}
	return identityFromClaims(claims)
}

// VerifyRefreshToken validates a refresh token and returns the identity and session id
func (c *TokenCodec) VerifyRefreshToken(token string) (*models.Identity, uuid.UUID, error) {
	claims, err := c.parse(token, TokenTypeRefresh, c.config.RefreshSecret)
	if err != nil {
		return nil, uuid.Nil, err
	}

	identity, err := identityFromClaims(claims)
	if err != nil {
		return nil, uuid.Nil, err
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: jti", ErrInvalidToken)
	}

	return identity, sessionID, nil
}

func (c *TokenCodec) parse(token string, want TokenType, secret string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}

	return claims, nil
}

// identityFromClaims converts raw claims with proper type conversions
func identityFromClaims(claims *Claims) (*models.Identity, error) {
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: uid", ErrInvalidToken)
	}
	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("%w: cid", ErrInvalidToken)
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role", ErrInvalidToken)
	}

	return &models.Identity{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
	}, nil
}
