package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingToken   = errors.New("authorization header is missing")
	ErrMalformedToken = errors.New("authorization header format must be 'Bearer {token}'")
)

// ExtractTokenFromRequest reads the bearer token from the Authorization header.
// Browsers cannot set headers on an EventSource, so the access_token query
// parameter is accepted as a fallback.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
		return "", ErrMissingToken
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedToken
	}
	return parts[1], nil
}
