// internal/app/features/groups/handler.go
package groups

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/services/membership"
	"github.com/dalemusser/grouphub/internal/app/services/registry"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/limits"
	"github.com/dalemusser/grouphub/internal/app/system/ratelimit"
	"github.com/dalemusser/grouphub/internal/app/system/requestid"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the group API. The services are built once at startup and
// shared by every request.
type Handler struct {
	Registry   *registry.Service
	Membership *membership.Service
	Log        *zap.Logger
}

// NewHandler constructs a groups Handler.
func NewHandler(reg *registry.Service, mem *membership.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Registry:   reg,
		Membership: mem,
		Log:        logger,
	}
}

// caller resolves the signed-in user and tags the request context with its
// origin for the audit trail. It writes a 401 and returns false when the
// identity is missing.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (authz.Caller, *http.Request, bool) {
	c, ok := authz.UserCtx(r)
	if !ok {
		apierrors.RenderUnauthorized(w)
		return authz.Caller{}, r, false
	}
	ctx := auditlog.WithOrigin(r.Context(), auditlog.Origin{
		IP:        ratelimit.ClientIP(r),
		RequestID: requestid.FromContext(r.Context()),
	})
	return c, r.WithContext(ctx), true
}

// decode reads a JSON body into dst and validates it. On failure it writes a
// 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			apierrors.RenderBadRequest(w, "Request body is required.")
		case errors.As(err, &tooBig):
			apierrors.RenderBadRequest(w, "Request body is too large.")
		default:
			apierrors.RenderBadRequest(w, "Request body is not valid JSON.")
		}
		return false
	}
	if res := inputval.Validate(dst); res.HasErrors() {
		apierrors.RenderBadRequest(w, res.All())
		return false
	}
	return true
}

// pathID parses a hex ObjectID route parameter. On failure it writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		apierrors.RenderBadRequest(w, "The id is not valid.")
		return primitive.NilObjectID, false
	}
	return oid, true
}

// mustID converts a hex string already checked by the objectid rule.
func mustID(hex string) primitive.ObjectID {
	oid, _ := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	return oid
}
