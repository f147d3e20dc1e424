package middlewares

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	jwtx "github.com/dropDatabas3/socialid/internal/jwt"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARES
// =================================================================================

// RequireAuth valida Authorization: Bearer <JWT> y guarda la sesión en el
// contexto. Token ausente => 401; token inválido o expirado => 403.
func RequireAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				apperrors.WriteError(w, apperrors.ErrUnauthorized)
				return
			}

			sc, err := issuer.VerifySession(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				if errors.Is(err, jwtx.ErrTokenExpired) {
					apperrors.WriteError(w, apperrors.ErrForbidden.WithDetail("token expired"))
					return
				}
				apperrors.WriteError(w, apperrors.ErrForbidden)
				return
			}

			ctx := WithSession(r.Context(), sc)
			ctx = WithUserID(ctx, sc.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}
