// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Global roles carried by the caller's token. A global admin or mod acts with
// that role in every group; "user" defers to the group's own admin/mod sets.
const (
	GlobalUser  = "user"
	GlobalAdmin = "admin"
	GlobalMod   = "mod"
)

// Caller is the authenticated user as services see it.
type Caller struct {
	UserID     primitive.ObjectID
	GlobalRole string
}

// IsGlobalAdmin reports whether the caller administers every group.
func (c Caller) IsGlobalAdmin() bool { return c.GlobalRole == GlobalAdmin }

// IsGlobalMod reports whether the caller moderates every group.
func (c Caller) IsGlobalMod() bool { return c.GlobalRole == GlobalMod }

// HasOverride reports whether the global role replaces group-level roles.
func (c Caller) HasOverride() bool { return c.IsGlobalAdmin() || c.IsGlobalMod() }

// UserCtx returns the caller and a found flag.
// If no identity is present or the user ID is malformed, it returns the zero
// Caller and false, so ok=true means a caller with a valid ObjectID.
// The role is normalized to lowercase for consistent comparison.
func UserCtx(r *http.Request) (Caller, bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return Caller{}, false
	}
	userID, err := primitive.ObjectIDFromHex(user.UserID)
	if err != nil {
		// Malformed id from the gateway: fail closed.
		return Caller{}, false
	}
	role := strings.ToLower(strings.TrimSpace(user.Role))
	if role == "" {
		role = GlobalUser
	}
	return Caller{UserID: userID, GlobalRole: role}, true
}
