package handler

import (
	"net/http"

	"github.com/keygatehq/keygate/internal/session"
)

// Whoami echoes the identity established by API-key authentication. The
// route sits behind RequireSession, so the session is always present here.
// GET /api/v1/whoami
func Whoami(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	resp := map[string]interface{}{
		"session": sess,
	}
	if key := session.APIKeyFromContext(r.Context()); key != nil {
		resp["key"] = map[string]interface{}{
			"id":          key.ID,
			"environment": key.Environment,
			"key_type":    key.KeyType,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
