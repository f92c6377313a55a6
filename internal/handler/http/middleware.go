package handler

import (
	"context"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"github.com/rookgm/reviewmart/internal/ratelimit"
	"go.uber.org/zap"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const (
	authPayloadKey contextKey = "auth_payload"
	authCookieName            = "auth_token"
)

// TokenVerifier resolves caller identity from token
type TokenVerifier interface {
	VerifyToken(tokenString string) (*models.TokenPayload, error)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware gets the token from Authorization header or cookie and passes its payload to the context
func AuthMiddleware(tv TokenVerifier) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				writeStatus(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			payload, err := tv.VerifyToken(token)
			if err != nil {
				writeStatus(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), authPayloadKey, payload)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects callers without admin role
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok || !payload.IsAdmin() {
			writeStatus(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getAuthPayload extracts authorization token payload from context
func getAuthPayload(ctx context.Context, key contextKey) (*models.TokenPayload, bool) {
	payload, ok := ctx.Value(key).(*models.TokenPayload)
	return payload, ok && payload != nil
}

// rateScope returns caller user id, or client address for anonymous calls
func rateScope(r *http.Request) string {
	if payload, ok := getAuthPayload(r.Context(), authPayloadKey); ok {
		return "user:" + strconv.FormatUint(payload.UserID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit counts request against budget of action. Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, action string) func(handler http.Handler) http.Handler {
	policy := ratelimit.Policies[action]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.Key{Scope: rateScope(r), Action: action}

			res, err := limiter.Allow(r.Context(), key, policy)
			if err != nil {
				logger.Log.Warn("rate limiter unavailable", zap.String("key", key.String()), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				writeError(w, models.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
