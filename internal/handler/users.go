package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// AuthService resolves credentials to sessions.
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (service.Session, bool, error)
	Authenticate(ctx context.Context, bearer string) (service.Session, error)
}

// UserService covers profile and admin user operations.
type UserService interface {
	Me(ctx context.Context, caller model.Caller) (*model.User, error)
	UpdateProfile(ctx context.Context, caller model.Caller, req model.UpdateProfileRequest) (*model.User, error)
	ListUsers(ctx context.Context, caller model.Caller, f model.UserFilter, p model.PageRequest) (model.Page[model.User], error)
	GetUser(ctx context.Context, caller model.Caller, id string) (*model.User, error)
	UpdateUser(ctx context.Context, caller model.Caller, id string, req model.UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, caller model.Caller, id string) error
	UserStats(ctx context.Context, caller model.Caller, id string) (model.UserStats, error)
}

// UserHandler holds the auth and user management handlers.
type UserHandler struct {
	auth  AuthService
	users UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(auth AuthService, users UserService) *UserHandler {
	return &UserHandler{auth: auth, users: users}
}

type sessionResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register handles POST /api/auth/register
// Exchanges an identity provider token for a session.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, created, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("X-Session-Token", session.Token)

	body := sessionResponse{User: session.User, Token: session.Token}
	if created {
		writeData(w, http.StatusCreated, "User registered successfully", body)
		return
	}
	writeData(w, http.StatusOK, "Login successful", body)
}

// Me handles GET /api/auth/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", u)
}

// UpdateProfile handles PUT /api/auth/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), callerFrom(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profile updated successfully", u)
}

// ListUsers handles GET /api/users (admin)
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.UserFilter{Role: model.Role(q.Get("role")), Search: q.Get("search")}

	page, err := h.users.ListUsers(r.Context(), callerFrom(r), f, pageFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

// GetUser handles GET /api/users/{id} (admin)
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", u)
}

// UserStats handles GET /api/users/{id}/stats (admin)
func (h *UserHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.users.UserStats(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", st)
}

// UpdateUser handles PUT /api/users/{id} (admin)
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.users.UpdateUser(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "User updated successfully", u)
}

// DeleteUser handles DELETE /api/users/{id} (admin)
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "User deleted successfully", nil)
}
