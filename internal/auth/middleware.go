package auth

import (
	"context"
	"net/http"

	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}

			p, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", err.Error())
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals whose role is not listed. It must run after Middleware.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", ErrMissingToken.Error())
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, http.StatusForbidden, "Forbidden", "insufficient role")
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}
