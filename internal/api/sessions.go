package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/storage"
)

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	identity, ok := authorize(w, r, auth.RoleChatUser)
	if !ok {
		return
	}
	transcript, err := deps.Gateway.Transcript(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		writeGatewayError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

func handleExportSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	identity, ok := authorize(w, r, auth.RoleChatUser)
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = storage.FormatJSON
	}
	id := r.PathValue("id")
	data, contentType, err := deps.Gateway.ExportTranscript(r.Context(), id, format, identity)
	if err != nil {
		writeGatewayError(r, w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.`+format+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func handleArchiveSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	identity, ok := authorize(w, r, auth.RoleQueryAdmin)
	if !ok {
		return
	}
	objects, err := deps.Gateway.ArchiveTranscript(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		writeGatewayError(r, w, err)
		return
	}
	keys := make([]string, 0, len(objects))
	for _, object := range objects {
		keys = append(keys, object.Key)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "archived", "session_id": r.PathValue("id"), "objects": keys})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	identity, ok := authorize(w, r, auth.RoleChatUser)
	if !ok {
		return
	}
	purge := false
	if raw := r.URL.Query().Get("purge"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PURGE", "purge must be a boolean", false, nil)
			return
		}
		purge = parsed
	}
	if err := deps.Gateway.EndSession(r.Context(), r.PathValue("id"), purge, identity); err != nil {
		writeGatewayError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ended", "session_id": r.PathValue("id"), "purged": purge})
}
