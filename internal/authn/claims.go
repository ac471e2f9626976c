package authn

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidJWT = errors.New("invalid jwt token")
var ErrInvalidClaims = errors.New("invalid claims")

// Claims carries the identity fields the services need from the Identity
// Gateway's bearer token. Subject is the stable user identifier.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"preferred_username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// DisplayName returns the best available human-readable name for the user.
func (c Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Username != "" {
		return c.Username
	}
	return c.Email
}

// NormalizedEmail returns the lower-cased email for case-insensitive
// invitation matching.
func (c Claims) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

func ParseClaims(token string) (Claims, error) {
	claims := Claims{}
	// Check if token is JWT by attempting to parse it
	if t, err := jwt.ParseWithClaims(token, &claims, nil); err != nil {
		// Ignore validation errors (signature verification happens upstream
		// at the gateway)
		if _, ok := err.(*jwt.ValidationError); !ok {
			return claims, ErrInvalidJWT
		}

		// Check if token was decoded successfully
		if t == nil {
			return claims, ErrInvalidClaims
		}
	}
	return claims, nil
}
