package middlewares

import (
	"context"

	jwtx "github.com/dropDatabas3/socialid/internal/jwt"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxSessionKey guarda las claims de sesión validadas
	ctxSessionKey ctxKey = "session"
	// ctxUserIDKey guarda el user ID extraído del token
	ctxUserIDKey ctxKey = "user_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithSession inyecta las claims de sesión en el contexto
func WithSession(ctx context.Context, sc *jwtx.SessionClaims) context.Context {
	return context.WithValue(ctx, ctxSessionKey, sc)
}

// WithUserID inyecta el user ID en el contexto
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetSession obtiene las claims de sesión del contexto.
// Retorna nil si el middleware de auth no se aplicó.
func GetSession(ctx context.Context) *jwtx.SessionClaims {
	if v := ctx.Value(ctxSessionKey); v != nil {
		if sc, ok := v.(*jwtx.SessionClaims); ok {
			return sc
		}
	}
	return nil
}

// GetUserID obtiene el user ID del contexto.
// Retorna cadena vacía si no hay user ID.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(ctxUserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
