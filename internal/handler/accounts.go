package handler

import (
	"errors"
	"net/http"

	"github.com/keygatehq/keygate/internal/event"
	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/store"
)

// AccountHandler manages owner accounts. Registration is the entry point of
// the key lifecycle: creating an account publishes AccountRegistered, which
// the issuer answers by minting the account's key batch.
type AccountHandler struct {
	store *store.Store
	bus   *event.Bus
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(st *store.Store, bus *event.Bus) *AccountHandler {
	return &AccountHandler{store: st, bus: bus}
}

// registerRequest is the expected payload for Register.
type registerRequest struct {
	UserName    string `json:"username"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
}

// registerResponse returns the new account together with its freshly issued
// keys. This is the only response that carries the plaintext tokens.
type registerResponse struct {
	Account *model.Account `json:"account"`
	Keys    []issuedKey    `json:"keys"`
}

type issuedKey struct {
	ID          int64  `json:"id"`
	Environment string `json:"environment"`
	KeyType     string `json:"key_type"`
	Token       string `json:"token"`
}

// Register creates a new owner account and issues its initial key batch.
// POST /api/v1/accounts
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.UserName == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	if existing, err := h.store.GetAccountByUserName(r.Context(), req.UserName); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "Account already exists: "+req.UserName)
		return
	}

	acc := &model.Account{
		UserName:    req.UserName,
		DisplayName: req.DisplayName,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
	}
	if err := h.store.CreateAccount(r.Context(), acc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account: "+err.Error())
		return
	}

	err := h.bus.PublishAccountRegistered(r.Context(), event.AccountRegistered{
		AccountID: acc.ID,
		UserName:  acc.UserName,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Account created but key issuance failed: "+err.Error(),
			map[string]interface{}{"account_id": acc.ID})
		return
	}

	keys, err := h.store.ListKeysByOwner(r.Context(), acc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load issued keys: "+err.Error())
		return
	}

	// Issuance order is environments outermost; the listing is newest-first,
	// so flip it back for the response.
	issued := make([]issuedKey, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		issued = append(issued, issuedKey{
			ID:          keys[i].ID,
			Environment: keys[i].Environment,
			KeyType:     keys[i].KeyType,
			Token:       keys[i].Token,
		})
	}

	writeJSON(w, http.StatusCreated, registerResponse{Account: acc, Keys: issued})
}

// List returns all accounts.
// GET /api/v1/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: accounts,
		Meta:     &model.ResponseMeta{Count: len(accounts)},
	})
}

// Get returns a single account by ID.
// GET /api/v1/accounts/{accountId}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "accountId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	acc, err := h.store.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get account: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// Lock locks an account, blocking authentication with any of its keys.
// POST /api/v1/accounts/{accountId}/lock
func (h *AccountHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, true)
}

// Unlock lifts an account lock. The account's keys become valid again
// without reissuing.
// POST /api/v1/accounts/{accountId}/unlock
func (h *AccountHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, false)
}

func (h *AccountHandler) setLock(w http.ResponseWriter, r *http.Request, lock bool) {
	id, ok := urlID(r, "accountId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	var err error
	if lock {
		err = h.store.LockAccount(r.Context(), id)
	} else {
		err = h.store.UnlockAccount(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update account: "+err.Error())
		return
	}

	acc, err := h.store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload account: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ListKeys returns the keys belonging to one account, without tokens.
// GET /api/v1/accounts/{accountId}/keys
func (h *AccountHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "accountId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	if _, err := h.store.GetAccount(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get account: "+err.Error())
		return
	}

	keys, err := h.store.ListKeysByOwner(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list keys: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: keys,
		Meta:     &model.ResponseMeta{Count: len(keys)},
	})
}
