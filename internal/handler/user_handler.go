package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/service"
)

// UserHandler serves authentication and account routes.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterAuthRoutes mounts /auth.
func (h *UserHandler) RegisterAuthRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/logout", h.handleLogout)
		r.Get("/profile", h.handleProfile)
		r.Post("/change-password", h.handleChangePassword)
	})
}

// RegisterUserRoutes mounts /users.
func (h *UserHandler) RegisterUserRoutes(r chi.Router) {
	r.Use(auth.RequireUser)
	r.With(auth.RequireRole(domain.RoleAdmin)).Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.With(auth.RequireRole(domain.RoleAdmin)).Put("/{id}/role", h.handleSetRole)
	r.Delete("/{id}", h.handleDeactivate)
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	session, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Session: *session, User: toUserResponse(session.User)})
}

func (h *UserHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ac := auth.GetAuthContext(r.Context())
	if err := h.users.Logout(r.Context(), ac.Token); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(auth.CurrentUser(r.Context())))
}

func (h *UserHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err := h.users.ChangePassword(r.Context(), service.ChangePasswordInput{
		UserID:          auth.CurrentUser(r.Context()).ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.users.List(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPage(page))
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// selfOrAdmin allows users to manage their own account and admins any account.
func selfOrAdmin(r *http.Request, id domain.ID) error {
	me := auth.CurrentUser(r.Context())
	if me.ID != id && !me.HasRole(domain.RoleAdmin) {
		return domain.ErrForbidden
	}
	return nil
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := selfOrAdmin(r, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), id, service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Avatar:    req.Avatar,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.users.SetRole(r.Context(), pathID(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := selfOrAdmin(r, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.users.SetActive(r.Context(), id, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
