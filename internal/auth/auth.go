// Package auth guards the API routes with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Danselem/dara-opsc/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// protectedPrefix is the only part of the URL space that requires a token;
// probes and metrics stay public for the orchestrator and scraper.
const protectedPrefix = "/api/"

// Middleware returns an HTTP middleware that enforces Bearer token auth on
// API paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !strings.HasPrefix(r.URL.Path, protectedPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="opsc"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
