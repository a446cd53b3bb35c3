package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rentproof/rentproof/internal/server/auth"
	"github.com/rentproof/rentproof/internal/server/models"
)

type contextKey string

const principalContextKey contextKey = "principal"

// BearerAuth returns middleware that validates the Authorization header and
// stores the verified principal in the request context.
func BearerAuth(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				writeError(w, http.StatusUnauthorized, "expected Bearer token")
				return
			}

			p, err := auth.ParsePrincipal(parts[1], secretKey)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext extracts the verified principal stored by BearerAuth.
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(models.Principal)
	return p, ok
}
