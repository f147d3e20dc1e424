package middlewares

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/dropDatabas3/socialid/internal/http/errors"
	"github.com/dropDatabas3/socialid/internal/observability/logger"
	"github.com/dropDatabas3/socialid/internal/rate"
)

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey: IP + path. Separa los límites por endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// UserRateKey: user autenticado si hay sesión, IP si no.
func UserRateKey(r *http.Request) string {
	if uid := GetUserID(r.Context()); uid != "" {
		return "u|" + uid
	}
	return clientIP(r)
}

// WithRateLimit crea un middleware de rate limiting.
// Si el limiter falla (Redis caído), el request pasa: preferimos
// degradar el límite antes que tirar el servicio.
func WithRateLimit(limiter rate.Limiter, keyFn RateKeyFunc) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if keyFn == nil {
		keyFn = IPPathRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limit check failed", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				if res.WindowTTL > 0 {
					resetAt := time.Now().Add(res.WindowTTL).Unix()
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
				}
				apperrors.WriteError(w, apperrors.ErrRateLimitExceeded)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
