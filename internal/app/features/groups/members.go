// internal/app/features/groups/members.go
package groups

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleJoin joins an open group or files a request for an approval group.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Membership.JoinGroup(ctx, caller, mustID(req.GroupID)); err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderMessage(w, http.StatusCreated, "Join group successful")
}

// HandleAccept approves a pending join request.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, true)
}

// HandleReject deletes a pending join request.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, false)
}

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request, accept bool) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		err error
		msg string
	)
	if accept {
		_, err = h.Membership.AcceptJoinRequest(ctx, caller, requestID)
		msg = "Accept join group request successful"
	} else {
		_, err = h.Membership.RejectJoinRequest(ctx, caller, requestID)
		msg = "Reject join group request successful"
	}
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderMessage(w, http.StatusCreated, msg)
}

// HandleBan bans a user from a group.
func (h *Handler) HandleBan(w http.ResponseWriter, r *http.Request) {
	h.toggleBan(w, r, true)
}

// HandleUnban lifts a ban.
func (h *Handler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	h.toggleBan(w, r, false)
}

func (h *Handler) toggleBan(w http.ResponseWriter, r *http.Request, banned bool) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req targetRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Membership.ToggleBan(ctx, caller, mustID(req.GroupID), mustID(req.UserID), banned); err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	msg := "Un ban user successful"
	if banned {
		msg = "Ban user successful"
	}
	apierrors.RenderMessage(w, http.StatusCreated, msg)
}

// HandleKick removes a user from a group. Removing an admin or mod strips
// the role and leaves the membership row alone.
func (h *Handler) HandleKick(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req targetRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Membership.RemoveUserInGroup(ctx, caller, mustID(req.GroupID), mustID(req.UserID)); err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderMessage(w, http.StatusCreated, "Remove user successful")
}

// HandleLeave removes the caller from the group in the path.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Membership.LeaveGroup(ctx, caller, groupID); err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderMessage(w, http.StatusCreated, "Leave group successful")
}

// ServeJoinedGroups lists the caller's active memberships.
func (h *Handler) ServeJoinedGroups(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Membership.ListJoinedGroups(ctx, caller.UserID, paging.ParsePage(r))
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusOK, res)
}

// ServePendingRequests lists a group's unanswered join requests.
func (h *Handler) ServePendingRequests(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.Membership.ListPendingRequests(ctx, caller, groupID, paging.ParsePage(r))
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusOK, res)
}

// ServeMembers returns a group with a page of its members.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	_, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.serveRoster(w, r, func(ctx context.Context, groupID primitive.ObjectID, page int) (any, error) {
		return h.Membership.ListMembers(ctx, groupID, page)
	})
}

// ServeBanned returns a group with a page of its banned users.
func (h *Handler) ServeBanned(w http.ResponseWriter, r *http.Request) {
	caller, r, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.serveRoster(w, r, func(ctx context.Context, groupID primitive.ObjectID, page int) (any, error) {
		return h.Membership.ListBanned(ctx, caller, groupID, page)
	})
}

func (h *Handler) serveRoster(w http.ResponseWriter, r *http.Request, list func(context.Context, primitive.ObjectID, int) (any, error)) {
	groupID, ok := pathID(w, r, "groupId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := list(ctx, groupID, paging.ParsePage(r))
	if err != nil {
		apierrors.RenderError(w, r, h.Log, err)
		return
	}
	apierrors.RenderJSON(w, http.StatusOK, res)
}
