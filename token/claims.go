package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

// Issuer is the iss claim of every access token minted by the auth API.
const Issuer = "termustat"

// Claims is the payload of an access token. Only Scopes is interpreted by the admin panel.
type Claims struct {
	UserID string   `json:"user_id"`
	Scopes []string `json:"scp,omitempty"`
	jwt.RegisteredClaims
}

// Decode reads the claims of a compact token without verifying its signature.
// The panel never holds the signing key; the API verifies every request anyway.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrNoToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	return claims, nil
}

// IsAdmin reports whether the first scope of the token equals adminScope.
// Malformed tokens are never admin.
func IsAdmin(rawToken, adminScope string) bool {
	claims, err := Decode(rawToken)
	if err != nil {
		return false
	}
	return claims.IsAdmin(adminScope)
}

// IsAdmin reports whether the first scope equals adminScope.
func (c *Claims) IsAdmin(adminScope string) bool {
	return len(c.Scopes) > 0 && c.Scopes[0] == adminScope
}
