package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const secret = "test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":         "user-1",
		"email":       "awa@kanzey.co",
		"given_name":  "Awa",
		"family_name": "Ndiaye",
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier(secret)

	p, err := v.Verify(context.Background(), signHS256(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.Equal(t, "Awa Ndiaye", p.FullName())
	assert.Equal(t, "awa@kanzey.co", p.Email)
}

func TestHMACVerifier_Rejects(t *testing.T) {
	v := NewHMACVerifier(secret)
	ctx := context.Background()

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err := v.Verify(ctx, signHS256(t, expired))
	assert.Error(t, err)

	noExp := validClaims()
	delete(noExp, "exp")
	_, err = v.Verify(ctx, signHS256(t, noExp))
	assert.Error(t, err)

	noSub := validClaims()
	delete(noSub, "sub")
	_, err = v.Verify(ctx, signHS256(t, noSub))
	assert.ErrorIs(t, err, ErrNoSubject)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = v.Verify(ctx, forged)
	assert.Error(t, err)

	_, err = v.Verify(ctx, "not-a-jwt")
	assert.Error(t, err)
}

func TestRoleClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]interface{}
		want   models.Role
	}{
		{"explicit role", map[string]interface{}{"role": "AGENT"}, models.RoleAgent},
		{"realm roles", map[string]interface{}{"realm_access": map[string]interface{}{"roles": []string{"offline_access", "admin"}}}, models.RoleAdmin},
		{"most privileged realm role", map[string]interface{}{"realm_access": map[string]interface{}{"roles": []string{"offline_access", "user", "agent"}}}, models.RoleAgent},
		{"admin outranks agent", map[string]interface{}{"realm_access": map[string]interface{}{"roles": []string{"agent", "admin", "user"}}}, models.RoleAdmin},
		{"role wins over realm", map[string]interface{}{"role": "organizer", "realm_access": map[string]interface{}{"roles": []string{"admin"}}}, models.RoleOrganizer},
		{"unknown role", map[string]interface{}{"role": "superuser"}, models.RoleUser},
	}
	v := NewHMACVerifier(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			for k, val := range tt.claims {
				claims[k] = val
			}
			p, err := v.Verify(context.Background(), signHS256(t, claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Role)
		})
	}
}

func TestOIDCVerifier_StaticKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	issuer := "https://auth.kanzey.test/realms/kanzey"

	v := &OIDCVerifier{verifier: oidc.NewVerifier(issuer,
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{SkipClientIDCheck: true})}

	claims := validClaims()
	claims["iss"] = issuer
	claims["realm_access"] = map[string]interface{}{"roles": []string{"agent"}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, models.RoleAgent, p.Role)

	claims["iss"] = "https://elsewhere.test"
	raw, err = jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), raw)
	assert.Error(t, err)
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractTokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMalformedToken)

	r.Header.Set("Authorization", "bearer abc")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	sse := httptest.NewRequest(http.MethodGet, "/api/payments/TKT-1/events?access_token=xyz", nil)
	token, err = ExtractTokenFromRequest(sse)
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	v := NewHMACVerifier(secret)
	var seen models.Principal
	h := Middleware(v, logger.Discard())(RequireRole(models.RoleAgent, models.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})))

	call := func(token string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/tickets/verify", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	rec := call("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, gjson.Get(rec.Body.String(), "success").Bool())

	assert.Equal(t, http.StatusUnauthorized, call("garbage").Code)

	rec = call(signHS256(t, validClaims()))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	agent := validClaims()
	agent["role"] = "agent"
	rec = call(signHS256(t, agent))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-1", seen.UserID)
	assert.Equal(t, models.RoleAgent, seen.Role)
}

func TestNewVerifier_SecretFallback(t *testing.T) {
	v, err := NewVerifier(context.Background(), configWithSecret(secret))
	require.NoError(t, err)
	assert.IsType(t, &HMACVerifier{}, v)

	_, err = NewVerifier(context.Background(), configWithSecret(""))
	assert.Error(t, err)
}

func configWithSecret(s string) config.AuthConfig {
	return config.AuthConfig{JWTSecret: s}
}
