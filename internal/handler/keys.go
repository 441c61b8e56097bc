package handler

import (
	"errors"
	"net/http"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

// KeyHandler manages API keys outside the registration flow: listing,
// reissuing a fresh batch for an existing account, and cancellation.
type KeyHandler struct {
	store  *store.Store
	issuer *service.Issuer
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(st *store.Store, issuer *service.Issuer) *KeyHandler {
	return &KeyHandler{store: st, issuer: issuer}
}

// List returns all keys across accounts. Tokens are never included.
// GET /api/v1/keys
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListKeys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list keys: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: keys,
		Meta:     &model.ResponseMeta{Count: len(keys)},
	})
}

// issueRequest is the expected payload for Issue.
type issueRequest struct {
	OwnerID int64 `json:"owner_id"`
}

// Issue mints a fresh key batch for an existing account, one key per
// configured environment and key type. Existing keys stay valid. The
// response carries the plaintext tokens; they are not retrievable later.
// POST /api/v1/keys
func (h *KeyHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == 0 {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	if _, err := h.store.GetAccount(r.Context(), req.OwnerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get account: "+err.Error())
		return
	}

	keys, err := h.issuer.IssueFor(r.Context(), req.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateToken) {
			writeError(w, http.StatusConflict, "Token collision, retry issuance")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to issue keys: "+err.Error())
		return
	}

	issued := make([]issuedKey, len(keys))
	for i, k := range keys {
		issued[i] = issuedKey{
			ID:          k.ID,
			Environment: k.Environment,
			KeyType:     k.KeyType,
			Token:       k.Token,
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"owner_id": req.OwnerID,
		"keys":     issued,
	})
}

// Cancel permanently revokes a key. Cancellation cannot be undone; cancelling
// an already-cancelled key reports 404 rather than refreshing the timestamp.
// DELETE /api/v1/keys/{keyId}
func (h *KeyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "keyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid key ID")
		return
	}

	if err := h.store.CancelKey(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found or already cancelled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to cancel key: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key cancelled",
	})
}
