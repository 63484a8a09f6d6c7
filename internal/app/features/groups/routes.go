// internal/app/features/groups/routes.go
package groups

import (
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes builds the group API. Every route requires an identity. Mutations
// are rate limited per caller when limiter is non-nil.
func Routes(h *Handler, authn *auth.Authenticator, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Use(authn.LoadIdentity)
	r.Use(auth.RequireSignedIn)

	// READ
	r.Get("/normal-group", h.ServeJoinedGroups)
	r.Get("/privileged-group", h.ServeManagedGroups)
	r.Get("/join-request/{groupId}", h.ServePendingRequests)
	r.Get("/with-members/{groupId}", h.ServeMembers)
	r.Get("/banned/{groupId}", h.ServeBanned)
	r.Get("/audit/{groupId}", h.ServeGroupHistory)
	r.Get("/stats", h.ServeStats)

	// WRITE
	r.Group(func(wr chi.Router) {
		wr.Use(ratelimit.Middleware(limiter, callerKey))

		wr.Post("/create", h.HandleCreateGroup)
		wr.Patch("/update", h.HandleUpdateGroup)
		wr.Post("/join", h.HandleJoin)
		wr.Patch("/accept/{requestId}", h.HandleAccept)
		wr.Patch("/reject/{requestId}", h.HandleReject)
		wr.Patch("/ban", h.HandleBan)
		wr.Patch("/un-ban", h.HandleUnban)
		wr.Post("/appoint", h.HandleAppoint)
		wr.Delete("/leave/{id}", h.HandleLeave)
		wr.Delete("/kick", h.HandleKick)
		wr.Delete("/{id}", h.HandleDeleteGroup)
	})

	return r
}

// callerKey buckets requests by user id, falling back to the client IP.
func callerKey(r *http.Request) string {
	if c, ok := authz.UserCtx(r); ok {
		return "user:" + c.UserID.Hex()
	}
	return "ip:" + ratelimit.ClientIP(r)
}
