package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	authapp "polyglot/internal/app/auth"
	domain "polyglot/internal/domain/auth"
	"polyglot/internal/shared/logging"
)

const maxAuthBodySize = 1 << 16

// AuthHandler manages authentication endpoints.
type AuthHandler struct {
	service *authapp.Service
	logger  logging.Logger
}

// NewAuthHandler builds a new authentication handler.
func NewAuthHandler(service *authapp.Service) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logging.NewComponentLogger("AuthHandler"),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type meResponse struct {
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// HandleLogin accepts an OAuth2 password form or a JSON body and issues a token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isFormRequest(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if err := decodeJSONBody(w, r, &req, maxAuthBodySize); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}

	issued, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			logging.FromContext(r.Context(), h.logger).Info("Failed login for %q from %s", req.Username, clientIP(r))
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		writeMappedError(w, r, h.logger, err)
		return
	}
	logging.FromContext(r.Context(), h.logger).Info("Issued token for %s", issued.Subject)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		ExpiresAt:   issued.ExpiresAt.UTC(),
		ExpiresIn:   int64(issued.ExpiresAt.Sub(issued.IssuedAt).Seconds()),
	})
}

// HandleChangePassword replaces the caller's password.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := CurrentPrincipal(r.Context())
	if !ok {
		writeUnauthorized(w, domain.ErrUnauthenticated)
		return
	}
	var req changePasswordRequest
	if err := decodeJSONBody(w, r, &req, maxAuthBodySize); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.service.ChangePassword(r.Context(), principal.Subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		// A wrong current password must not look like a rejected session.
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeDetail(w, http.StatusBadRequest, "Incorrect current password")
			return
		}
		writeMappedError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// HandleMe describes the authenticated caller.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := CurrentPrincipal(r.Context())
	if !ok {
		writeUnauthorized(w, domain.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Username:  principal.Subject,
		Role:      principal.Role,
		ExpiresAt: principal.ExpiresAt.UTC(),
	})
}
