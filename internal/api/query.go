package api

import (
	"net/http"
	"strings"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/gateway"
)

type chatMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type adHocQueryRequest struct {
	SQLQuery    string `json:"sqlQuery"`
	Description string `json:"description"`
}

type validateQueryRequest struct {
	SQLQuery string `json:"sqlQuery"`
}

func handleChatMessage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	identity, ok := authorize(w, r, auth.RoleChatUser)
	if !ok {
		return
	}

	var request chatMessageRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	response := deps.Gateway.HandleMessage(r.Context(), gateway.Message{
		Text:      request.Message,
		SessionID: strings.TrimSpace(request.SessionID),
	}, identity)
	writeJSON(w, chatStatus(response), response)
}

// chatStatus keeps the response body for every outcome; only the status
// varies with the failure kind.
func chatStatus(response gateway.Response) int {
	switch response.Kind {
	case "":
		return http.StatusOK
	case gateway.KindForbidden:
		return http.StatusForbidden
	case gateway.KindUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func handleAdHocQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	identity, ok := authorize(w, r, auth.RoleQueryAdmin)
	if !ok {
		return
	}

	var request adHocQueryRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.SQLQuery) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sqlQuery is required", false, nil)
		return
	}

	result := deps.Gateway.ExecuteAdHoc(r.Context(), request.SQLQuery, identity)
	if !result.Successful {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleValidateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	if _, ok := authorize(w, r, auth.RoleChatUser); !ok {
		return
	}

	var request validateQueryRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.SQLQuery) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sqlQuery is required", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, deps.Gateway.ValidateOnly(r.Context(), request.SQLQuery))
}
