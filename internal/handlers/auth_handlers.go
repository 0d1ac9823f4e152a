package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chatstream-backend/internal/auth"
	"chatstream-backend/internal/models"
	"chatstream-backend/internal/services"
	"chatstream-backend/internal/store"
	"chatstream-backend/pkg/httputil"
)

// AuthService defines the interface expected from the auth service.
// This promotes loose coupling and testability.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (string, *models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (string, *models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type AuthHandler struct {
	authService     AuthService
	tokenExpiration time.Duration
	secureCookies   bool
}

func NewAuthHandler(authSvc AuthService, tokenExpiration time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:     authSvc,
		tokenExpiration: tokenExpiration,
		secureCookies:   secureCookies,
	}
}

func userResponse(user *models.User) models.UserResponse {
	return models.UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenExpiration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleRegister handles the POST /v1/auth/register request.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		log.Printf("Register handler failed for email %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrUserAlreadyExists):
			httputil.RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Registration failed due to an internal error")
		}
		return
	}

	h.setAuthCookie(w, token)
	resp := models.AuthResponse{
		AccessToken: token,
		User:        userResponse(user),
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleLogin handles the POST /v1/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req)
	if err != nil {
		log.Printf("Login handler failed for email %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Login failed due to an internal error")
		}
		return
	}

	h.setAuthCookie(w, token)
	resp := models.AuthResponse{
		AccessToken: token,
		User:        userResponse(user),
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleLogout handles the POST /v1/auth/logout request by expiring the
// auth cookie. Stateless tokens have nothing to revoke server-side.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleMe handles the GET /v1/auth/me request.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Me handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, userResponse(user))
}
