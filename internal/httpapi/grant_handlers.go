package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"campuscore.org/internal/grant"
)

type createGrantRequest struct {
	RecipientID     string `json:"recipient_id"`
	Action          string `json:"action"`
	DurationMinutes int    `json:"duration_minutes"`
}

type checkGrantRequest struct {
	Action string `json:"action"`
}

func (a *API) handleGrantsCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		var g grant.Grant
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			g, err = a.grants.Grant(ctx, actor, req.RecipientID, req.Action, req.DurationMinutes)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/grants/%s", g.ID))
		writeJSON(w, http.StatusCreated, g)
	case http.MethodGet:
		// a caller sees their own grants
		var list []grant.Grant
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			list, err = a.grants.ListForRecipient(ctx, actor.ID)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []grant.Grant{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleGrantCheck answers whether the caller currently holds a usable
// grant for the action. A hit is recorded in the audit trail under the
// delegated-use action name.
func (a *API) handleGrantCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req checkGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var g grant.Grant
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		g, err = a.grants.CheckAndConsume(ctx, actor.ID, req.Action)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allowed": true,
		"grant":   g,
	})
}

func (a *API) handleGrantResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/grants/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		return a.grants.Deactivate(ctx, actor, id)
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
