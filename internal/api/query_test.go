package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/gateway"
	"github.com/nlqgate/nlqgate/internal/query"
	"github.com/nlqgate/nlqgate/internal/sqlguard"
)

func TestChatMessageRoute(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		response   gateway.Response
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			body:       `{"message":"how many laptops do we have","sessionId":" s-1 "}`,
			response:   gateway.Response{Text: "There are 4 assets matching your criteria.", Successful: true, SessionID: "s-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "execution failure keeps body",
			body:       `{"message":"how many laptops"}`,
			response:   gateway.Response{Text: "I generated a query but there was an error executing it: x", Kind: gateway.KindExecutionFailed},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "foreign session",
			body:       `{"message":"hi","sessionId":"s-2"}`,
			response:   gateway.Response{Kind: gateway.KindForbidden},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unexpected",
			body:       `{"message":"hi"}`,
			response:   gateway.Response{Kind: gateway.KindUnexpected},
			wantStatus: http.StatusInternalServerError,
		},
		{name: "blank message", body: `{"message":"  "}`, wantStatus: http.StatusBadRequest, wantCode: "MESSAGE_REQUIRED"},
		{name: "unknown field", body: `{"msg":"hi"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_JSON"},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_JSON"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeGateway{response: tc.response}
			h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/messages", strings.NewReader(tc.body)))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if tc.wantCode != "" {
				if body["error_code"] != tc.wantCode {
					t.Fatalf("body = %#v", body)
				}
				return
			}
			if body["response"] != tc.response.Text {
				t.Fatalf("body = %#v", body)
			}
			if _, ok := body["Kind"]; ok {
				t.Fatalf("kind leaked into body: %#v", body)
			}
			if fake.lastIdentity.Subject != auth.Anonymous.Subject {
				t.Fatalf("identity = %#v", fake.lastIdentity)
			}
		})
	}
}

func TestChatMessageTrimsSessionID(t *testing.T) {
	fake := &fakeGateway{response: gateway.Response{Successful: true}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/messages", strings.NewReader(`{"message":"hi","sessionId":" s-1 "}`)))
	if fake.lastMessage.SessionID != "s-1" || fake.lastMessage.Text != "hi" {
		t.Fatalf("message = %#v", fake.lastMessage)
	}
}

func TestAdHocQueryRoute(t *testing.T) {
	fake := &fakeGateway{result: query.Result{
		Successful:  true,
		Columns:     []string{"count"},
		Rows:        []query.Row{{{Column: "count", Value: 3}}},
		RowCount:    1,
		ExecutedSQL: "SELECT COUNT(*) FROM Assets",
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/query", strings.NewReader(`{"sqlQuery":"SELECT COUNT(*) FROM Assets","description":"asset count"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["isSuccessful"] != true || body["rowCount"] != float64(1) {
		t.Fatalf("body = %#v", body)
	}
	if fake.lastSQL != "SELECT COUNT(*) FROM Assets" {
		t.Fatalf("sql = %q", fake.lastSQL)
	}

	fake.result = query.Result{Error: "Query validation failed: query contains forbidden keyword DROP", Rows: []query.Row{}}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/query", strings.NewReader(`{"sqlQuery":"DROP TABLE Assets"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["errorMessage"] != fake.result.Error {
		t.Fatalf("body = %#v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/query", strings.NewReader(`{"sqlQuery":""}`)))
	if body := decodeBody(t, rr); rr.Code != http.StatusBadRequest || body["error_code"] != "SQL_REQUIRED" {
		t.Fatalf("status = %d, body = %#v", rr.Code, body)
	}
}

func TestValidateQueryRoute(t *testing.T) {
	fake := &fakeGateway{validation: gateway.ValidationResult{
		Query:   "DELETE FROM Assets",
		Message: "Query validation failed",
		Check:   sqlguard.CheckDenylist,
		Reason:  "query contains forbidden keyword DELETE",
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: fake})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/validate", strings.NewReader(`{"sqlQuery":"DELETE FROM Assets"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["isValid"] != false || body["query"] != "DELETE FROM Assets" || body["failedCheck"] != "denylist" {
		t.Fatalf("body = %#v", body)
	}
}
