package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fundline/fundline/internal/shared"
)

// Middleware wires capability checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// WithPrincipal extracts the collaborator-authenticated identity from the
// gateway headers and stores it in the request context.
func (m Middleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		role := r.Header.Get("X-User-Role")
		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require ensures the current principal holds the given capability.
func (m Middleware) Require(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.PrincipalFromContext(r.Context())
			if p.UserID == 0 {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !Can(p.Role, operation) {
				if m.Logger != nil {
					m.Logger.Warn("capability denied",
						slog.Int64("user", p.UserID),
						slog.String("role", p.Role),
						slog.String("operation", operation))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
