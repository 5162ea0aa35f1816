package api

import (
	"crypto/subtle"
	"log"
	"net"
	"net/http"
	"strings"
)

// AdminAuth guards routes that change server state. With a token
// configured, requests must carry "Authorization: Bearer <token>".
// Without one, only loopback clients are admitted.
type AdminAuth struct {
	token []byte
}

// NewAdminAuth creates the guard. An empty token means loopback-only.
func NewAdminAuth(token string) *AdminAuth {
	if token == "" {
		log.Println("🔐 No ADMIN_TOKEN set, admin writes are limited to localhost")
	}
	return &AdminAuth{token: []byte(token)}
}

// Authorized reports whether r may use admin routes.
func (a *AdminAuth) Authorized(r *http.Request) bool {
	if len(a.token) == 0 {
		ip := net.ParseIP(remoteHost(r))
		return ip != nil && ip.IsLoopback()
	}

	presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), a.token) == 1
}

// Middleware answers 401 for unauthorized requests.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorized(r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="jinxcore"`)
			writeError(w, "Admin authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
