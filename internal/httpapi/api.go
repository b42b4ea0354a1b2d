package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/auth"
	"campuscore.org/internal/channel"
	"campuscore.org/internal/grant"
	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
	"campuscore.org/internal/obs"
	"campuscore.org/internal/store/pg"
)

// ReadyProbe reports whether the service can take traffic (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the portal services.
type API struct {
	mux        *http.ServeMux
	store      *pg.Store
	auth       *auth.Service
	identities *identity.Service
	channels   *channel.Service
	grants     *grant.Service
	recorder   *audit.Recorder
	readyProbe ReadyProbe
	version    string
}

// Config wires the services into the API.
type Config struct {
	Store      *pg.Store
	Auth       *auth.Service
	Identities *identity.Service
	Channels   *channel.Service
	Grants     *grant.Service
	Recorder   *audit.Recorder
	ReadyProbe ReadyProbe
	Version    string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      cfg.Store,
		auth:       cfg.Auth,
		identities: cfg.Identities,
		channels:   cfg.Channels,
		grants:     cfg.Grants,
		recorder:   cfg.Recorder,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/password", a.handleChangePassword)

	a.mux.HandleFunc("/v1/identities", a.handleIdentitiesCollection)
	a.mux.HandleFunc("/v1/identities/", a.handleIdentityResource)

	a.mux.HandleFunc("/v1/departments", a.handleDepartmentsCollection)
	a.mux.HandleFunc("/v1/departments/", a.handleDepartmentResource)

	a.mux.HandleFunc("/v1/batches", a.handleBatchesCollection)
	a.mux.HandleFunc("/v1/batches/", a.handleBatchResource)

	a.mux.HandleFunc("/v1/channels", a.handleChannelsCollection)
	a.mux.HandleFunc("/v1/channels/", a.handleChannelResource)

	a.mux.HandleFunc("/v1/grants", a.handleGrantsCollection)
	a.mux.HandleFunc("/v1/grants/check", a.handleGrantCheck)
	a.mux.HandleFunc("/v1/grants/", a.handleGrantResource)

	a.mux.HandleFunc("/v1/audit", a.handleAuditList)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware stack around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = MaxBodyBytes(h, 1<<20)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "campuscore-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "campuscore-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- unit of work plumbing ---

// actorFrom extracts the caller's claims as a service actor. The authn
// middleware guarantees claims for everything past the public paths.
func actorFrom(ctx context.Context) (identity.Actor, bool) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return identity.Actor{}, false
	}
	return identity.Actor{
		ID:           claims.IdentityID(),
		Tag:          claims.Tag,
		DepartmentID: claims.DepartmentID,
	}, true
}

// inUnit runs fn inside a unit of work bound to the actor's claims and
// commits iff fn succeeds. Without a wired store (service-level tests)
// fn runs on the bare context.
func (a *API) inUnit(ctx context.Context, actor identity.Actor, fn func(ctx context.Context) error) error {
	if a.store == nil {
		return fn(ctx)
	}
	unit, err := a.store.Begin(ctx, actor)
	if err != nil {
		return err
	}
	defer unit.Rollback()
	if err := fn(pg.ContextWithUnit(ctx, unit)); err != nil {
		return err
	}
	return unit.Commit()
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps domain errors onto HTTP statuses. Unknown
// errors collapse to a generic 500 so internals never leak.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hierarchy.ErrInvalidTag),
		errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, channel.ErrInvalidInput),
		errors.Is(err, grant.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, identity.ErrDepartmentRequired):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidCurrentPassword):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, hierarchy.ErrViolation),
		errors.Is(err, identity.ErrDepartmentOverride),
		errors.Is(err, channel.ErrInsufficientRank),
		errors.Is(err, grant.ErrDenied),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrNotFound),
		errors.Is(err, channel.ErrNotFound),
		errors.Is(err, grant.ErrNotFound),
		errors.Is(err, grant.ErrRecipientNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
