package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/hierarchy"
)

// handleAuditList serves GET /v1/audit. The trail is visible only to
// the top administrative tags.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if !hierarchy.IsTopAdministrative(actor.Tag) {
		writeError(w, r, http.StatusForbidden, "administrative access required")
		return
	}

	f := audit.Filter{
		ActorID: r.URL.Query().Get("actor_id"),
		Action:  r.URL.Query().Get("action"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = val
	}

	var entries []audit.Entry
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		entries, err = a.recorder.List(ctx, f)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
