package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// AuthFailure is raised for a missing, malformed, expired, or
// invalid-signature bearer token. Callers map it to HTTP 401.
type AuthFailure struct {
	Reason string
	Cause  error
}

func (e *AuthFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth failure: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("auth failure: %s", e.Reason)
}

func (e *AuthFailure) Unwrap() error { return e.Cause }

// NewAuthFailure constructs an AuthFailure.
func NewAuthFailure(reason string, cause error) *AuthFailure {
	return &AuthFailure{Reason: reason, Cause: cause}
}

// ScopeDenied is raised when a validated token lacks a required scope.
// Callers map it to HTTP 403.
type ScopeDenied struct {
	RequiredScope string
}

func (e *ScopeDenied) Error() string {
	return fmt.Sprintf("scope denied: token lacks required scope %q", e.RequiredScope)
}

// NewScopeDenied constructs a ScopeDenied.
func NewScopeDenied(requiredScope string) *ScopeDenied {
	return &ScopeDenied{RequiredScope: requiredScope}
}

// JWTValidatorConfig configures JWTValidator.
type JWTValidatorConfig struct {
	// Mode selects the signing algorithm family: "hs256" or "rs256".
	Mode string
	// HMACSecret is the shared HS256 signing secret, required when Mode
	// is "hs256".
	HMACSecret string
	// JWKSURL resolves RS256 verification keys, required when Mode is
	// "rs256".
	JWKSURL string
	// Issuer is the required `iss` claim value.
	Issuer string
	// Audience is the required `aud` claim value (matched by equality or
	// array membership).
	Audience string
}

// JWTValidator validates bearer tokens against either an HS256 shared
// secret or an RS256 JWKS endpoint, and extracts scopes from any of
// `scope` (space-separated string), `scopes` (array), or `roles`
// (array).
type JWTValidator struct {
	cfg    JWTValidatorConfig
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
}

// NewJWTValidator constructs a JWTValidator. For rs256 mode it resolves
// the JWKS endpoint eagerly; a stale or unreachable JWKS fails closed on
// every subsequent validation rather than at construction time.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	v := &JWTValidator{cfg: cfg, logger: slog.Default().With("component", "auth.jwt")}

	if cfg.Mode == "rs256" {
		jwks, err := keyfunc.NewDefault([]string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("auth: jwks init failed: %w", err)
		}
		v.jwks = jwks
	}

	return v, nil
}

// Claims is the validated, scope-normalized result of a token check.
type Claims struct {
	Subject string
	Scopes  map[string]bool
}

// HasScope reports whether the validated token carries scope.
func (c Claims) HasScope(scope string) bool {
	return c.Scopes[scope]
}

// Validate parses and verifies tokenString, checking issuer, audience,
// expiry, and signature, then normalizes its scopes.
func (v *JWTValidator) Validate(tokenString string) (Claims, error) {
	var keyFunc jwt.Keyfunc
	switch v.cfg.Mode {
	case "rs256":
		if v.jwks == nil {
			return Claims{}, NewAuthFailure("jwks not initialized", nil)
		}
		keyFunc = v.jwks.Keyfunc
	default:
		if v.cfg.HMACSecret == "" {
			return Claims{}, NewAuthFailure("hmac secret not configured", nil)
		}
		keyFunc = func(*jwt.Token) (any, error) { return []byte(v.cfg.HMACSecret), nil }
	}

	token, err := jwt.Parse(tokenString, keyFunc, jwt.WithValidMethods([]string{"HS256", "RS256"}))
	if err != nil || !token.Valid {
		return Claims{}, NewAuthFailure("invalid or expired token", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, NewAuthFailure("malformed claims", nil)
	}

	if v.cfg.Issuer != "" {
		iss, _ := mapClaims["iss"].(string)
		if iss != v.cfg.Issuer {
			return Claims{}, NewAuthFailure("issuer mismatch", nil)
		}
	}
	if v.cfg.Audience != "" && !audienceMatches(mapClaims["aud"], v.cfg.Audience) {
		return Claims{}, NewAuthFailure("audience mismatch", nil)
	}
	if exp, ok := mapClaims["exp"]; ok {
		expTime, err := parseNumericTime(exp)
		if err == nil && time.Now().After(expTime) {
			return Claims{}, NewAuthFailure("token expired", nil)
		}
	}

	sub, _ := mapClaims["sub"].(string)
	return Claims{Subject: sub, Scopes: extractScopes(mapClaims)}, nil
}

func audienceMatches(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func parseNumericTime(v any) (time.Time, error) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), nil
	case int64:
		return time.Unix(n, 0), nil
	case jwt.NumericDate:
		return n.Time, nil
	default:
		return time.Time{}, fmt.Errorf("auth: unrecognized exp claim type %T", v)
	}
}

func extractScopes(claims jwt.MapClaims) map[string]bool {
	scopes := make(map[string]bool)

	if raw, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(raw) {
			scopes[s] = true
		}
	}
	if raw, ok := claims["scopes"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				scopes[s] = true
			}
		}
	}
	if raw, ok := claims["roles"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				scopes[s] = true
			}
		}
	}

	return scopes
}

type claimsContextKey struct{}

// RequireScope returns HTTP middleware that validates the bearer token
// and requires it carry requiredScope, storing the resulting Claims in
// the request context on success.
func (v *JWTValidator) RequireScope(requiredScope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAuthError(w, NewAuthFailure("missing bearer token", nil))
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := v.Validate(tokenString)
		if err != nil {
			v.logger.Warn("token validation failed", "error", err, "path", r.URL.Path)
			writeAuthError(w, err)
			return
		}

		if requiredScope != "" && !claims.HasScope(requiredScope) {
			writeAuthError(w, NewScopeDenied(requiredScope))
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAnyScope behaves like RequireScope but succeeds if the token
// carries at least one of the given scopes.
func (v *JWTValidator) RequireAnyScope(requiredScopes []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAuthError(w, NewAuthFailure("missing bearer token", nil))
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := v.Validate(tokenString)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		for _, scope := range requiredScopes {
			if claims.HasScope(scope) {
				ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		writeAuthError(w, NewScopeDenied(strings.Join(requiredScopes, " or ")))
	})
}

// ClaimsFromContext retrieves the Claims stored by RequireScope.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(Claims)
	return c, ok
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	if _, ok := err.(*ScopeDenied); ok {
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"detail": %q}`, err.Error())))
}

// MintHS256 mints a short-lived HS256 token for the ingest adapter's own
// use, claims {sub, scope, iat, exp}.
func MintHS256(secret, subject, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
