package api

import (
	"errors"
	"net/http"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/logging"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// MeResponse describes the caller of GET /api/auth/me.
type MeResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginRequest
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	identity, err := h.credentials.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithDomainError(w, r, err, "")
			return
		}
		logging.FromContext(r.Context()).WithField("username", input.Username).Warn("login_failed")
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	issued, err := h.tokens.IssueAccessToken(identity)
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	logging.FromContext(r.Context()).WithField("username", identity.Username).Info("login_succeeded")
	respondWithJSON(w, http.StatusOK, TokenResponse{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		ExpiresIn:   int64(issued.TTL.Seconds()),
	})
}

// Logout is stateless; the client discards its token.
func (h *HTTPHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Successfully logged out"})
}

// Me requires RequireToken to have stored the claims.
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	respondWithJSON(w, http.StatusOK, MeResponse{Username: claims.Subject, Role: claims.Role})
}
