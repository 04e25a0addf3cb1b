package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Keys struct {
	// Public keys may read service state and subscribe to the event stream.
	Public []string
	// Admin keys may also start, stop and ping services.
	Admin []string
}

// Role is what a caller may do with the engine. Higher roles include lower ones.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleOperator
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleOperator:
		return "operator"
	default:
		return "none"
	}
}

type roleKey struct{}

// RoleFrom returns the role Authenticate resolved for the request.
func RoleFrom(ctx context.Context) Role {
	r, _ := ctx.Value(roleKey{}).(Role)
	return r
}

// roleOf maps a presented key to a role. With no keys configured every
// caller is an operator; with only public keys configured a public key
// may also control services.
func (k Keys) roleOf(given string) Role {
	if len(k.Public) == 0 && len(k.Admin) == 0 {
		return RoleOperator
	}
	switch {
	case hasKey(given, k.Admin):
		return RoleOperator
	case hasKey(given, k.Public):
		if len(k.Admin) == 0 {
			return RoleOperator
		}
		return RoleViewer
	}
	return RoleNone
}

func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return strings.TrimSpace(k)
	}
	// browsers cannot set headers on a websocket handshake
	if k := r.URL.Query().Get("api_key"); k != "" {
		return strings.TrimSpace(k)
	}
	return ""
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

// Authenticate resolves the caller's role from its API key and rejects
// callers without one with 401. Keys are never logged.
func Authenticate(keys Keys, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := keys.roleOf(readAuth(r))
			if role == RoleNone {
				log.Info("api_unauthorized",
					zap.String("path", r.URL.Path),
					zap.String("remote", clientIP(r)),
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, role)))
		})
	}
}

// Require rejects with 403 any request whose resolved role is below min.
// It must run after Authenticate.
func Require(min Role, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := RoleFrom(r.Context()); got < min {
				log.Info("api_forbidden",
					zap.String("path", r.URL.Path),
					zap.String("role", got.String()),
					zap.String("required", min.String()),
				)
				writeAuthError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
