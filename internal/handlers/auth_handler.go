package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"accountd/internal/security"
	"accountd/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	session, _, err := h.authService.Login(req.Handle, req.Password)
	if err != nil {
		respondServiceError(w, err, "Login failed.")
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, session.ID, session.ExpiresAt))
	respondMessage(w, http.StatusOK, "Successfully logged in.")
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionIDFromContext(r.Context())
	if err := h.authService.Logout(sessionID); err != nil {
		respondServiceError(w, err, "Logout failed.")
		return
	}

	http.SetCookie(w, security.CreateDeleteCookie(r))
	respondMessage(w, http.StatusOK, "Successfully logged out.")
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle          string `json:"handle"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	_, session, err := h.authService.Register(r.Context(), service.RegisterRequest{
		Handle:          req.Handle,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		respondServiceError(w, err, "Registration failed.")
		return
	}

	// Registration establishes a session right away.
	http.SetCookie(w, security.CreateSessionCookie(r, session.ID, session.ExpiresAt))
	respondMessage(w, http.StatusCreated, "User registered successfully.")
}

// RequestPasswordReset handles POST /password-reset-request. The response
// is the same whether or not the email belongs to an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondServiceError(w, err, "Password reset request failed")
		return
	}

	respondMessage(w, http.StatusOK, "If the email exists, a password reset link has been sent.")
}

// ConfirmPasswordReset handles POST /password-reset-confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.authService.ConfirmPasswordReset(req.Token, req.Password, req.PasswordConfirm); err != nil {
		respondServiceError(w, err, "Invalid data")
		return
	}

	respondMessage(w, http.StatusOK, "Password has been reset successfully.")
}

// CheckResetToken handles GET /password-reset/{uid}/{token}. It reports
// validity without consuming the token, so a reset page can decide whether
// to show the form.
func (h *AuthHandler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	resetToken := r.PathValue("token")

	valid, err := h.authService.ValidateResetToken(uid, resetToken)
	if err != nil {
		respondServiceError(w, err, "Token check failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"is_valid": valid})
}

// DeleteAccount handles POST /delete-account
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
		Reason   string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	account := AccountFromContext(r.Context())
	sessionID := SessionIDFromContext(r.Context())

	if err := h.authService.DeleteAccount(account, sessionID, req.Password, req.Reason); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondJSON(w, http.StatusBadRequest, apiResponse{
				Message: "Invalid data provided.",
				Errors:  map[string][]string{"password": {"Incorrect password."}},
			})
			return
		}
		respondServiceError(w, err, "Account deletion failed")
		return
	}

	http.SetCookie(w, security.CreateDeleteCookie(r))
	respondMessage(w, http.StatusOK, "Your account has been successfully deleted.")
}
