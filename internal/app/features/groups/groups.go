// internal/app/features/groups/groups.go
package groups

import (
	"context"
	"net/http"
	"strconv"

	apierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HandleCreateGroup creates a group with the caller as its only admin.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Registry.CreateGroup(ctx, caller, req.input())
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusCreated, g)
}

// HandleUpdateGroup changes the attributes present in the body.
func (h *Handler) HandleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req updateGroupRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Registry.UpdateGroup(ctx, caller, mustID(req.GroupID), req.input())
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusCreated, g)
}

// HandleDeleteGroup deletes a group and all of its membership rows, and
// returns the deleted group.
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	g, err := h.Registry.DeleteGroup(ctx, caller, groupID)
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusCreated, g)
}

// HandleAppoint makes a user an admin or mod of a group.
func (h *Handler) HandleAppoint(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req appointRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Registry.AppointUser(ctx, caller, mustID(req.GroupID), mustID(req.UserID), req.Role); err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderMessage(w, http.StatusCreated, "Appoint user successful")
}

// ServeManagedGroups lists groups the caller administers or moderates.
func (h *Handler) ServeManagedGroups(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Registry.ListManagedGroups(ctx, caller.UserID, paging.ParsePage(r))
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusOK, res)
}

// ServeGroupHistory returns the newest audit events of a group.
func (h *Handler) ServeGroupHistory(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, "groupId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Registry.GroupHistory(ctx, caller, groupID, historyLimit(r))
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusOK, map[string]any{"results": events})
}

// ServeStats reports service-wide totals to global admins.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	counts, err := h.Registry.Stats(ctx, caller)
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusOK, counts)
}

// historyLimit reads ?limit=, clamped to [1, maxHistoryLimit].
func historyLimit(r *http.Request) int64 {
	n, err := strconv.Atoi(query.Get(r, "limit"))
	if err != nil || n < 1 {
		return defaultHistoryLimit
	}
	return int64(min(n, maxHistoryLimit))
}
