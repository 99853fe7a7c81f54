package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nlqgate/nlqgate/internal/observability"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// Failure reasons reported on the auth failure counter.
const (
	failureMissingKey        = "missing_key"
	failureUnsupportedScheme = "unsupported_scheme"
	failureInvalidKey        = "invalid_key"
)

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// Middleware resolves the caller's API key to an Identity and rejects the
// request with 401 when it cannot.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, reason := extractAPIKey(r)
			if reason != "" {
				observability.IncrementAuthFailure(reason)
				message := "missing API key"
				if reason == failureUnsupportedScheme {
					message = "authorization scheme must be Bearer"
				}
				writeUnauthorized(w, r, message)
				return
			}

			identity, ok := validator.Validate(r.Context(), apiKey)
			if !ok {
				observability.IncrementAuthFailure(failureInvalidKey)
				if logger != nil {
					logger.WarnContext(r.Context(), "authentication failed",
						slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				writeUnauthorized(w, r, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// extractAPIKey reads X-API-Key first, then a Bearer token. The second
// return value is a failure reason when no usable key is present.
func extractAPIKey(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, ""
	}
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if authorization == "" {
		return "", failureMissingKey
	}
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", failureUnsupportedScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", failureMissingKey
	}
	return token, ""
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="nlqgate"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
