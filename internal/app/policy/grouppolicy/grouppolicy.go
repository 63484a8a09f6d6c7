// internal/app/policy/grouppolicy/grouppolicy.go
//
// Package grouppolicy decides who may do what inside a group. Everything here
// is pure: callers load the group, ask the policy, then persist the result
// with a conditional write that re-checks the same facts.
package grouppolicy

import (
	"errors"
	"strings"

	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a user's standing inside one group.
type Role string

const (
	RoleNone   Role = "none"
	RoleMember Role = "member"
	RoleMod    Role = "mod"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts "admin" or "mod" in any case. Other values are rejected
// since only those two roles can be appointed.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleMod:
		return RoleMod, true
	}
	return RoleNone, false
}

// CanModerate reports whether r may approve, reject, ban and kick.
func (r Role) CanModerate() bool { return r == RoleAdmin || r == RoleMod }

var (
	ErrNotPermitted = errors.New("permission denied")
	ErrLastAdmin    = errors.New("group must keep at least one admin")
	ErrNotGovernor  = errors.New("user is not an admin or mod of the group")
	ErrInvalidRole  = errors.New("role must be admin or mod")
	ErrAlreadyHolds = errors.New("user already holds this role")
	ErrWouldDemote  = errors.New("an admin cannot be appointed mod")
)

// Contains reports whether id is in ids.
func Contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ResolveRole returns the group-level role of userID: admin if listed in
// Admin, else mod if listed in Mod, else none. Membership rows are not
// consulted.
func ResolveRole(g models.Group, userID primitive.ObjectID) Role {
	switch {
	case Contains(g.Admin, userID):
		return RoleAdmin
	case Contains(g.Mod, userID):
		return RoleMod
	default:
		return RoleNone
	}
}

// EffectiveRole applies the caller's global role on top of ResolveRole.
func EffectiveRole(c authz.Caller, g models.Group) Role {
	switch {
	case c.IsGlobalAdmin():
		return RoleAdmin
	case c.IsGlobalMod():
		return RoleMod
	default:
		return ResolveRole(g, c.UserID)
	}
}

/* ------------------------------ membership ------------------------------- */

// State is where a (group, user) pair sits in the membership lifecycle.
type State int

const (
	StateNone State = iota
	StatePending
	StateMember
	StateBanned
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateMember:
		return "member"
	case StateBanned:
		return "banned"
	default:
		return "none"
	}
}

// StateOf maps a membership row (nil when absent) to its State.
// Banned wins over accepted.
func StateOf(m *models.GroupMember) State {
	switch {
	case m == nil:
		return StateNone
	case m.Banned:
		return StateBanned
	case m.Accepted:
		return StateMember
	default:
		return StatePending
	}
}

/* --------------------------- admin / mod sets ---------------------------- */

// AuthorizeAppoint checks whether a caller with callerRole may give target
// newRole in g.
func AuthorizeAppoint(callerRole Role, g models.Group, target primitive.ObjectID, newRole Role) error {
	if callerRole != RoleAdmin {
		return ErrNotPermitted
	}
	if newRole != RoleAdmin && newRole != RoleMod {
		return ErrInvalidRole
	}
	current := ResolveRole(g, target)
	switch {
	case current == newRole:
		return ErrAlreadyHolds
	case current == RoleAdmin && newRole == RoleMod:
		return ErrWouldDemote
	}
	return nil
}

// AuthorizeGovernorRemoval checks whether a caller with callerRole may strip
// target of its admin or mod role. This is the single place the last-admin
// rule is decided.
func AuthorizeGovernorRemoval(callerRole Role, g models.Group, target primitive.ObjectID) error {
	if callerRole != RoleAdmin {
		return ErrNotPermitted
	}
	switch ResolveRole(g, target) {
	case RoleAdmin:
		if len(g.Admin) <= 1 {
			return ErrLastAdmin
		}
		return nil
	case RoleMod:
		return nil
	default:
		return ErrNotGovernor
	}
}
