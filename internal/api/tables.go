package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/gateway"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	if _, ok := authorize(w, r, auth.RoleChatUser); !ok {
		return
	}
	description, err := deps.Gateway.Describe(r.Context())
	if err != nil {
		writeGatewayError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, description)
}

func handleSchemaDescription(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	if _, ok := authorize(w, r, auth.RoleChatUser); !ok {
		return
	}
	text, err := deps.Gateway.SchemaDescription(r.Context())
	if err != nil {
		writeGatewayError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"description": text})
}

func handleStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !gatewayConfigured(deps, w, r) {
		return
	}
	if _, ok := authorize(w, r, auth.RoleChatUser); !ok {
		return
	}
	writeJSON(w, http.StatusOK, deps.Gateway.Stats(r.Context()))
}

func handleHelp(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Gateway == nil {
		writeJSON(w, http.StatusOK, gateway.HelpInfo(0))
		return
	}
	writeJSON(w, http.StatusOK, deps.Gateway.Help())
}

// authorize resolves the caller and checks one of roles. Without an auth
// middleware in front the caller is anonymous and holds every role.
func authorize(w http.ResponseWriter, r *http.Request, roles ...string) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Anonymous, true
	}
	if err := requireAnyRole(identity, roles...); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return auth.Identity{}, false
	}
	return identity, true
}

func requireAnyRole(identity auth.Identity, roles ...string) error {
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("missing required role, expected one of %q", strings.Join(roles, ","))
}
