package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"campuscore.org/internal/channel"
	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
)

type createChannelRequest struct {
	Name       string `json:"name"`
	MinimumTag string `json:"minimum_tag_required"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (a *API) handleChannelsCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createChannelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		var ch channel.Channel
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			ch, err = a.channels.Create(ctx, actor, req.Name, hierarchy.Tag(req.MinimumTag))
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/channels/%s", ch.ID))
		writeJSON(w, http.StatusCreated, ch)
	case http.MethodGet:
		// the channel list itself is not gated; its contents are
		var list []channel.Channel
		err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
			var err error
			list, err = a.channels.List(ctx)
			return err
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if list == nil {
			list = []channel.Channel{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleChannelResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/channels/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "messages" || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	channelID := parts[0]
	switch r.Method {
	case http.MethodPost:
		a.postMessage(w, r, actor, channelID)
	case http.MethodGet:
		a.listMessages(w, r, actor, channelID)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) postMessage(w http.ResponseWriter, r *http.Request, actor identity.Actor, channelID string) {
	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var msg channel.Message
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		msg, err = a.channels.Post(ctx, actor, channelID, req.Content)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request, actor identity.Actor, channelID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = val
	}
	var list []channel.Message
	err := a.inUnit(r.Context(), actor, func(ctx context.Context) error {
		var err error
		list, err = a.channels.Messages(ctx, actor, channelID, limit)
		return err
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []channel.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}
