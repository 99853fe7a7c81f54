package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/config"
	"github.com/nlqgate/nlqgate/internal/gateway"
	"github.com/nlqgate/nlqgate/internal/observability"
	"github.com/nlqgate/nlqgate/internal/query"
	"github.com/nlqgate/nlqgate/internal/schema"
	"github.com/nlqgate/nlqgate/internal/session"
	"github.com/nlqgate/nlqgate/internal/storage"
)

const maxRequestBytes = 64 << 10

type ReadinessCheck func(ctx context.Context) error

// Gateway is the subset of gateway.Service the HTTP routes call.
type Gateway interface {
	HandleMessage(ctx context.Context, msg gateway.Message, identity auth.Identity) gateway.Response
	ExecuteAdHoc(ctx context.Context, sqlText string, identity auth.Identity) query.Result
	ValidateOnly(ctx context.Context, sqlText string) gateway.ValidationResult
	Describe(ctx context.Context) (schema.Description, error)
	SchemaDescription(ctx context.Context) (string, error)
	Stats(ctx context.Context) map[string]any
	Help() gateway.Help
	Transcript(ctx context.Context, id string, identity auth.Identity) (session.Session, error)
	ExportTranscript(ctx context.Context, id, format string, identity auth.Identity) ([]byte, string, error)
	ArchiveTranscript(ctx context.Context, id string, identity auth.Identity) ([]storage.ObjectInfo, error)
	EndSession(ctx context.Context, id string, purge bool, identity auth.Identity) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Gateway           Gateway
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/chat/help", func(w http.ResponseWriter, r *http.Request) {
		handleHelp(deps, w, r)
	})

	protected := http.NewServeMux()
	protectedRoutes := map[string]http.HandlerFunc{
		"POST /v1/chat/messages":              func(w http.ResponseWriter, r *http.Request) { handleChatMessage(deps, w, r) },
		"POST /v1/chat/query":                 func(w http.ResponseWriter, r *http.Request) { handleAdHocQuery(deps, w, r) },
		"POST /v1/chat/validate":              func(w http.ResponseWriter, r *http.Request) { handleValidateQuery(deps, w, r) },
		"GET /v1/chat/schema":                 func(w http.ResponseWriter, r *http.Request) { handleSchema(deps, w, r) },
		"GET /v1/chat/schema/description":     func(w http.ResponseWriter, r *http.Request) { handleSchemaDescription(deps, w, r) },
		"GET /v1/chat/stats":                  func(w http.ResponseWriter, r *http.Request) { handleStats(deps, w, r) },
		"GET /v1/chat/sessions/{id}":          func(w http.ResponseWriter, r *http.Request) { handleGetSession(deps, w, r) },
		"GET /v1/chat/sessions/{id}/export":   func(w http.ResponseWriter, r *http.Request) { handleExportSession(deps, w, r) },
		"POST /v1/chat/sessions/{id}/archive": func(w http.ResponseWriter, r *http.Request) { handleArchiveSession(deps, w, r) },
		"DELETE /v1/chat/sessions/{id}":       func(w http.ResponseWriter, r *http.Request) { handleDeleteSession(deps, w, r) },
	}
	for pattern, handler := range protectedRoutes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range protectedRoutes {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckDatabase pings the database the gateway queries.
func CheckDatabase(ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New("database is not configured")
		}
		if err := ping(ctx); err != nil {
			return errors.New("database is unreachable")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Sessions.Archive {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

// writeGatewayError maps a gateway error kind to a status. Only the error's
// caller-safe message is written.
func writeGatewayError(r *http.Request, w http.ResponseWriter, err error) {
	message := "request failed"
	var gatewayErr *gateway.Error
	if errors.As(err, &gatewayErr) {
		message = gatewayErr.Message
	}
	switch gateway.KindOf(err) {
	case gateway.KindNotFound:
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", message, false, nil)
	case gateway.KindForbidden:
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", message, false, nil)
	case gateway.KindInvalidInput:
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_INPUT", message, false, nil)
	case gateway.KindUnavailable:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "UNAVAILABLE", message, true, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", message, true, nil)
	}
}

func gatewayConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Gateway == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GATEWAY_NOT_CONFIGURED", "gateway dependencies are not configured", false, nil)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}
