package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"campuscore.org/internal/identity"
)

type createDepartmentRequest struct {
	Name string `json:"name"`
}

type createBatchRequest struct {
	DepartmentID string `json:"department_id"`
	Label        string `json:"label"`
}

type batchStatusRequest struct {
	DepartmentID string `json:"department_id"`
	Status       string `json:"status"`
}

func (a *API) handleDepartmentsCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createDepartmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		var dept identity.Department
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			dept, err = a.identities.CreateDepartment(ctx, actor, req.Name)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/departments/%s", dept.ID))
		writeJSON(w, http.StatusCreated, dept)
	case http.MethodGet:
		var list []identity.Department
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			list, err = a.identities.ListDepartments(ctx)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []identity.Department{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleDepartmentResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/departments/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		return a.identities.DeleteDepartment(ctx, actor, id)
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBatchesCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createBatchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		var batch identity.Batch
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			batch, err = a.identities.CreateBatch(ctx, actor, req.DepartmentID, req.Label)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, batch)
	case http.MethodGet:
		departmentID := strings.TrimSpace(r.URL.Query().Get("department_id"))
		if departmentID == "" {
			departmentID = actor.DepartmentID
		}
		if departmentID == "" {
			writeError(w, r, http.StatusBadRequest, "department_id is required")
			return
		}
		var list []identity.Batch
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			list, err = a.identities.ListBatches(ctx, departmentID)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []identity.Batch{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleBatchResource serves PUT /v1/batches/{label}/status: a bulk
// status flip for one student cohort.
func (a *API) handleBatchResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/batches/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "status" || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req batchStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	departmentID := req.DepartmentID
	if departmentID == "" {
		departmentID = actor.DepartmentID
	}
	var updated int64
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		updated, err = a.identities.UpdateBatchStatus(ctx, actor, parts[0], departmentID, req.Status)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}
