package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintHS256ThenValidateRoundTrips(t *testing.T) {
	token, err := MintHS256("shared-secret", "ingest-adapter", "ingest:write", time.Hour)
	require.NoError(t, err)

	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "shared-secret"})
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ingest-adapter", claims.Subject)
	assert.True(t, claims.HasScope("ingest:write"))
	assert.False(t, claims.HasScope("admin"))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := MintHS256("correct-secret", "sub", "scope", time.Hour)
	require.NoError(t, err)

	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "wrong-secret"})
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.Error(t, err)
	var failure *AuthFailure
	assert.ErrorAs(t, err, &failure)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	token, err := MintHS256("secret", "sub", "scope", -time.Minute)
	require.NoError(t, err)

	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret"})
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.Error(t, err)
}

func TestValidateWithoutHMACSecretFailsClosed(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256"})
	require.NoError(t, err)

	_, err = v.Validate("anything")
	assert.Error(t, err)
}

func TestValidateRejectsIssuerMismatch(t *testing.T) {
	token, err := MintHS256("secret", "sub", "scope", time.Hour)
	require.NoError(t, err)

	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret", Issuer: "https://issuer.example"})
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.Error(t, err)
}

func TestExtractScopesCombinesScopeScopesAndRolesClaims(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret"})
	require.NoError(t, err)

	token, err := MintHS256("secret", "sub", "read write", time.Hour)
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.HasScope("read"))
	assert.True(t, claims.HasScope("write"))

	combined := extractScopes(jwt.MapClaims{
		"scope":  "read",
		"scopes": []any{"export"},
		"roles":  []any{"admin"},
	})
	assert.True(t, combined["read"])
	assert.True(t, combined["export"])
	assert.True(t, combined["admin"])
}

func TestRequireScopeAllowsMatchingBearerToken(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret"})
	require.NoError(t, err)

	token, err := MintHS256("secret", "sub", "ingest:write", time.Hour)
	require.NoError(t, err)

	var reachedHandler bool
	handler := v.RequireScope("ingest:write", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reachedHandler = true
		claims, ok := ClaimsFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "sub", claims.Subject)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, reachedHandler)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireScopeRejectsMissingBearerPrefix(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret"})
	require.NoError(t, err)

	handler := v.RequireScope("ingest:write", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a bearer token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireScopeRejectsInsufficientScope(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret"})
	require.NoError(t, err)

	token, err := MintHS256("secret", "sub", "read", time.Hour)
	require.NoError(t, err)

	handler := v.RequireScope("write", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without the required scope")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyScopeSucceedsWithOneOfSeveral(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Mode: "hs256", HMACSecret: "secret"})
	require.NoError(t, err)

	token, err := MintHS256("secret", "sub", "read", time.Hour)
	require.NoError(t, err)

	var reachedHandler bool
	handler := v.RequireAnyScope([]string{"write", "read"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reachedHandler = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, reachedHandler)
}

func TestAudienceMatchesAcceptsStringAndArrayForms(t *testing.T) {
	assert.True(t, audienceMatches("api", "api"))
	assert.True(t, audienceMatches([]any{"other", "api"}, "api"))
	assert.False(t, audienceMatches([]any{"other"}, "api"))
	assert.False(t, audienceMatches(42, "api"))
}
