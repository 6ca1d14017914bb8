/*
Package auth provides JWT bearer-token validation and scope enforcement
for the evidence sidecar.

Tokens are validated against either an HS256 shared secret or an RS256
JSON Web Key Set, and scopes are read from the `scope` (space-separated
string), `scopes` (array), or `roles` (array) claims. Handlers gate on a
required scope with RequireScope/RequireAnyScope and read the validated
Claims back out of the request context.

# Basic usage

	validator, err := auth.NewJWTValidator(auth.JWTValidatorConfig{
		Mode:       "hs256",
		HMACSecret: secret,
	})
	if err != nil {
		return err
	}

	mux.Handle("POST /v1/events", validator.RequireScope("trust:ingest", handler))

# Reading claims in a handler

	func handler(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Printf("request from %s\n", claims.Subject)
	}
*/
package auth
