package auth

import (
	"errors"

	"kanzey-ticketing/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("subject claim not found in token")

// tokenClaims covers both the identity provider's access tokens and locally
// signed HS256 tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	Role        string `json:"role,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles,omitempty"`
	} `json:"realm_access,omitempty"`
}

func (c *tokenClaims) principal() (models.Principal, error) {
	if c.Subject == "" {
		return models.Principal{}, ErrNoSubject
	}
	return models.Principal{
		UserID:    c.Subject,
		Role:      c.role(),
		Email:     c.Email,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
	}, nil
}

// role prefers the explicit role claim, then the most privileged known realm role.
// Tokens without either are treated as buyers.
func (c *tokenClaims) role() models.Role {
	if r, ok := models.ParseRole(c.Role); ok {
		return r
	}
	best := models.RoleUser
	for _, name := range c.RealmAccess.Roles {
		if r, ok := models.ParseRole(name); ok && r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}
