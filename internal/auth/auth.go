// Package auth guards the API with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// probes and scrapes are always public.
var exemptPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// EventSource cannot set headers, so stream routes may pass the token as
// ?access_token=.
const streamPrefix = "/api/v1/stream/"

// Middleware enforces the bearer token on every non-exempt path when auth
// is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !cfg.valid(requestToken(r)) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="posatt"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return tok
	}
	if strings.HasPrefix(r.URL.Path, streamPrefix) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func (c Config) valid(tok string) bool {
	return tok != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(c.Token)) == 1
}
