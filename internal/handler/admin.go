package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

// AdminHandler manages admin sessions and admin users.
type AdminHandler struct {
	store   *store.Store
	authSvc *service.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(st *store.Store, authSvc *service.AuthService) *AdminHandler {
	return &AdminHandler{store: st, authSvc: authSvc}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin user and returns a JWT session token.
// POST /api/v1/admin/session
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	admin, err := h.store.GetAdminByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Authentication error: "+err.Error())
		return
	}

	if !admin.IsActive {
		writeError(w, http.StatusUnauthorized, "Account is disabled")
		return
	}

	if store.HashPassword(req.Password) != admin.PasswordHash {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ttl := 24 * time.Hour
	token, err := h.authSvc.IssueJWT(r.Context(), admin.ID, admin.Email, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	_ = h.store.UpdateAdminLastLogin(r.Context(), admin.ID)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(ttl.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout invalidates the current session. Since JWTs are stateless, this is
// a no-op on the server side. Clients should discard their token.
// DELETE /api/v1/admin/session
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// ListAdmins returns all admin accounts.
// GET /api/v1/admins
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list admins: "+err.Error())
		return
	}

	resources := make([]model.Admin, len(admins))
	copy(resources, admins)

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

// CreateAdmin creates a new admin account.
// POST /api/v1/admins
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if body.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if len(body.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	if existing, err := h.store.GetAdminByEmail(r.Context(), body.Email); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "Admin with this email already exists")
		return
	}

	admin := &model.Admin{
		Email:        body.Email,
		PasswordHash: store.HashPassword(body.Password),
		Name:         body.Name,
		IsActive:     true,
	}

	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create admin: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, admin)
}
