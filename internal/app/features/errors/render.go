// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/requestid"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RenderJSON writes v with the given status.
func RenderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RenderMessage writes {"message": msg}.
func RenderMessage(w http.ResponseWriter, status int, msg string) {
	RenderJSON(w, status, map[string]string{"message": msg})
}

// RenderError maps err to its status and writes {"error": kind, "message": msg}.
// Internal errors are logged and reported with a generic message.
func RenderError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal && log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestid.FromContext(r.Context())),
			zap.Error(err))
	}
	RenderJSON(w, kind.HTTPStatus(), Body{Error: kind.String(), Message: apperr.MessageOf(err)})
}

// RenderBadRequest reports a malformed request.
func RenderBadRequest(w http.ResponseWriter, msg string) {
	RenderJSON(w, http.StatusBadRequest, Body{Error: apperr.BadRequest.String(), Message: msg})
}

// RenderUnauthorized reports a request without a usable identity.
func RenderUnauthorized(w http.ResponseWriter) {
	RenderJSON(w, http.StatusUnauthorized, Body{Error: "unauthorized", Message: "Authentication required"})
}
