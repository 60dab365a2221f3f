// Package auth enforces bearer-token authentication on the HTTP API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
	// PublicReads lets GET and HEAD through without a token, so only state
	// mutations (pick, state updates) need one.
	PublicReads bool
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/catalog/metadata": true,
	"/api/v1/legend":           true,
}

func isExempt(r *http.Request, cfg Config) bool {
	if exemptPaths[r.URL.Path] {
		return true
	}
	return cfg.PublicReads && (r.Method == http.MethodGet || r.Method == http.MethodHead)
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt requests when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r, cfg) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="orbitview"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
