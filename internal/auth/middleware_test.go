package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:chat_user|query_admin, k2:bob:chat_user")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Subject != "alice" {
		t.Fatalf("Subject = %q", identity.Subject)
	}
	if !identity.HasRole(RoleQueryAdmin) || !identity.HasRole(RoleChatUser) {
		t.Fatalf("Roles = %v", identity.Roles)
	}
	bob, ok := validator.Validate(context.Background(), "k2")
	if !ok || bob.HasRole(RoleQueryAdmin) {
		t.Fatalf("bob = %#v, ok = %v", bob, ok)
	}
	if _, ok := validator.Validate(context.Background(), "nope"); ok {
		t.Fatal("unknown key should not validate")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{
		"invalid",
		"k1::chat_user",
		"k1:alice:",
		"k1:alice:superuser",
		"k1:alice:chat_user,k1:bob:chat_user",
	} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("expected parse error for %q", spec)
		}
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:chat_user")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat/schema", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareRejectsUnknownKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:chat_user")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	handler := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/schema", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:chat_user")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Subject != "alice" {
			t.Fatalf("Subject = %q", identity.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/schema", nil)
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareRejectsUnsupportedScheme(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:chat_user")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/schema", nil)
	req.Header.Set("Authorization", "Basic azE6")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "authorization scheme must be Bearer") {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestExtractAPIKey(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		key    string
		reason string
	}{
		{name: "x-api-key wins", header: map[string]string{"X-API-Key": "k1", "Authorization": "Bearer k2"}, key: "k1"},
		{name: "bearer", header: map[string]string{"Authorization": "Bearer k2"}, key: "k2"},
		{name: "bearer lowercase", header: map[string]string{"Authorization": "bearer k2"}, key: "k2"},
		{name: "empty bearer", header: map[string]string{"Authorization": "Bearer "}, reason: failureUnsupportedScheme},
		{name: "missing", header: map[string]string{}, reason: failureMissingKey},
		{name: "basic", header: map[string]string{"Authorization": "Basic abc"}, reason: failureUnsupportedScheme},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			key, reason := extractAPIKey(req)
			if key != tc.key || reason != tc.reason {
				t.Fatalf("extractAPIKey() = %q, %q; want %q, %q", key, reason, tc.key, tc.reason)
			}
		})
	}
}
