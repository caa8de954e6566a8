package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/middleware"
	"github.com/hitoshi/campuslink/internal/model"
)

// AuthHandler は /api/auth/* を処理する。
type AuthHandler struct {
	store  *Store
	tokens *TokenIssuer
	logger *slog.Logger
}

type loginRequest struct {
	Email string `json:"email"`
}

type signupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login はメールアドレスに対応する登録済みユーザーのCredentialを発行する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}

	u, err := h.store.UserByEmail(req.Email)
	if errors.Is(err, ErrNotFound) {
		middleware.WriteError(w, http.StatusBadRequest, "User not found. Please sign up first.")
		return
	}
	if err != nil {
		h.serverError(w, "login lookup failed", err)
		return
	}

	h.respondWithToken(w, http.StatusOK, u)
}

// Signup はユーザーを登録してCredentialを発行する。
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrFieldsRequired.Error())
		return
	}

	role := model.RoleStudent
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "Role must be student or admin")
			return
		}
		role = parsed
	}

	u, err := h.store.CreateUser(req.Email, strings.TrimSpace(req.Name), role)
	if errors.Is(err, ErrAlreadyExists) {
		middleware.WriteError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		h.serverError(w, "signup failed", err)
		return
	}

	h.logger.Info("user registered", slog.String("user_id", u.ID), slog.String("role", string(u.Role)))
	h.respondWithToken(w, http.StatusCreated, u)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, u *User) {
	token, err := h.tokens.Issue(model.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
	if err != nil {
		h.serverError(w, "token issue failed", err)
		return
	}
	middleware.WriteJSON(w, status, model.AuthResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
		Token: token,
	})
}

func (h *AuthHandler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
