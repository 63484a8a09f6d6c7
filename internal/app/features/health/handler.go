// internal/app/features/health/handler.go
package health

import (
	"net/http"

	apierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler reports whether the service can reach MongoDB.
type Handler struct {
	Client  *mongo.Client
	Service string
	Log     *zap.Logger
}

func NewHandler(client *mongo.Client, service string, logger *zap.Logger) *Handler {
	return &Handler{
		Client:  client,
		Service: service,
		Log:     logger,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service,omitempty"`
	Database string `json:"database"`
	Message  string `json:"message,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "service":"grouphub", "database":"connected" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable" }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Ping(), h.Log, "health ping")
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Service:  h.Service,
		Database: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		apierrors.RenderJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	apierrors.RenderJSON(w, http.StatusOK, resp)
}
