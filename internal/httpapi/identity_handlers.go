package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
)

type createIdentityRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	Tag          string         `json:"tag"`
	DepartmentID string         `json:"department_id"`
	Batch        string         `json:"batch"`
	Profile      map[string]any `json:"profile_data"`
}

type updateProfileRequest struct {
	Profile map[string]any `json:"profile_data"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleIdentitiesCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		a.createIdentity(w, r, actor)
	case http.MethodGet:
		a.listIdentities(w, r, actor)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createIdentity(w http.ResponseWriter, r *http.Request, actor identity.Actor) {
	var req createIdentityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var created identity.Identity
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		created, err = a.identities.Create(ctx, actor, identity.NewIdentity{
			Email:        req.Email,
			Password:     req.Password,
			Tag:          hierarchy.Tag(req.Tag),
			DepartmentID: req.DepartmentID,
			Batch:        req.Batch,
			Profile:      req.Profile,
		})
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/identities/%s", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listIdentities(w http.ResponseWriter, r *http.Request, actor identity.Actor) {
	var list []identity.Identity
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		list, err = a.identities.List(ctx)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []identity.Identity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) handleIdentityResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/identities/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			a.getIdentity(w, r, actor, id)
		case http.MethodPatch:
			a.updateIdentityProfile(w, r, actor, id)
		case http.MethodDelete:
			a.deleteIdentity(w, r, actor, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateIdentityStatus(w, r, actor, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getIdentity(w http.ResponseWriter, r *http.Request, actor identity.Actor, id string) {
	var found identity.Identity
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		found, err = a.identities.Get(ctx, id)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (a *API) updateIdentityProfile(w http.ResponseWriter, r *http.Request, actor identity.Actor, id string) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var updated identity.Identity
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		updated, err = a.identities.Update(ctx, actor, id, identity.ProfileUpdate{Profile: req.Profile})
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) updateIdentityStatus(w http.ResponseWriter, r *http.Request, actor identity.Actor, id string) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var updated identity.Identity
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		updated, err = a.identities.UpdateStatus(ctx, actor, id, req.Status)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteIdentity(w http.ResponseWriter, r *http.Request, actor identity.Actor, id string) {
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		return a.identities.Delete(ctx, actor, id)
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
