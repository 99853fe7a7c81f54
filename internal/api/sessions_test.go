package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlqgate/nlqgate/internal/gateway"
	"github.com/nlqgate/nlqgate/internal/session"
)

func TestGetSessionRoute(t *testing.T) {
	fake := &fakeGateway{transcript: session.Session{
		ID:      "s-1",
		Subject: "anonymous",
		Entries: []session.Entry{{Role: session.RoleUser, Text: "hello"}},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/s-1", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"hello"`) {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	fake.err = &gateway.Error{Kind: gateway.KindNotFound, Message: "session not found"}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/missing", nil))
	if body := decodeBody(t, rr); rr.Code != http.StatusNotFound || body["message"] != "session not found" {
		t.Fatalf("status = %d, body = %#v", rr.Code, body)
	}

	fake.err = &gateway.Error{Kind: gateway.KindForbidden, Message: "session belongs to another subject"}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/s-1", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestExportSessionRoute(t *testing.T) {
	fake := &fakeGateway{export: []byte("PAR1")}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/s-1/export?format=PARQUET", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "PAR1" {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
	if fake.lastFormat != "parquet" {
		t.Fatalf("format = %q", fake.lastFormat)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="s-1.parquet"` {
		t.Fatalf("Content-Disposition = %q", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions/s-1/export", nil))
	if fake.lastFormat != "json" || rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("format = %q, content type = %q", fake.lastFormat, rr.Header().Get("Content-Type"))
	}
}

func TestArchiveSessionRoute(t *testing.T) {
	fake := &fakeGateway{}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/sessions/s-1/archive", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "sessions/s-1/transcript.json") {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteSessionRoute(t *testing.T) {
	fake := &fakeGateway{}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/chat/sessions/s-1?purge=true", nil))
	if rr.Code != http.StatusOK || !fake.lastPurge {
		t.Fatalf("status = %d, purge = %v", rr.Code, fake.lastPurge)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/chat/sessions/s-1?purge=maybe", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}
