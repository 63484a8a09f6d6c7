// internal/app/features/errors/errors.go
package errors

import "net/http"

// Handler serves the router's fallback responses.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// NotFound answers routes that do not exist.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, http.StatusNotFound, Body{Error: "not_found", Message: "Route not found"})
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, http.StatusMethodNotAllowed, Body{Error: "method_not_allowed", Message: "Method not allowed"})
}
