package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"campuscore.org/internal/audit"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	session, err := a.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	// Operator log line only; logins are deliberately absent from the
	// durable trail.
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"identity_id": session.Identity.ID,
		"tag":         string(session.Identity.Tag),
		"expires_at":  session.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, session)
}

// handleChangePassword is self-service: the target identity is always
// the caller, taken from the bearer claims.
func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		return a.auth.ChangePassword(ctx, actor.ID, req.CurrentPassword, req.NewPassword)
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
