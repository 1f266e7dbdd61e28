package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-playground/validator/v10"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*session.User, error)
}

type AuthHandler struct {
	auth     Authenticator
	sessions *session.Manager
	validate *validator.Validate
	logger   *slog.Logger
	timeout  time.Duration
}

func NewAuthHandler(auth Authenticator, sessions *session.Manager, logger *slog.Logger, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message string        `json:"message"`
	User    *session.User `json:"user"`
}

type UserResponse struct {
	User *session.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "invalid_request", "Email and password are required", err.Error())
		return
	}

	user, err := h.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if h.logger != nil {
			h.logger.InfoContext(ctx, "login failed", slog.String("email", req.Email), slog.Any("error", err))
		}
		handleServiceError(w, r, err)
		return
	}

	sess := session.FromContext(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "session_error", "Failed to save session")
		return
	}
	sess.Login(*user)
	if err := h.sessions.Commit(ctx, w, sess); err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "session save error", slog.Any("error", err))
		}
		respondError(w, http.StatusInternalServerError, "session_error", "Failed to save session")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Message: "Login successful", User: user})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Not logged in")
		return
	}
	respondJSON(w, http.StatusOK, UserResponse{User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := session.FromContext(r.Context())
	h.sessions.Destroy(sess)
	if err := h.sessions.Commit(ctx, w, sess); err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "logout failed", slog.Any("error", err))
		}
		respondError(w, http.StatusInternalServerError, "session_error", "Logout failed")
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}
