// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Privacy controls whether a group is listed publicly.
type Privacy int

const (
	PrivacyPublic Privacy = iota
	PrivacyPrivate
)

// Valid reports whether p is a known privacy level.
func (p Privacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

func (p Privacy) String() string {
	switch p {
	case PrivacyPublic:
		return "public"
	case PrivacyPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Group is a social group.
//
// NOTE:
//   - Admin is never empty while the group exists. The store refuses to
//     pull the last admin and the collection validator requires minItems 1.
//   - Admin and Mod are disjoint; promoting a mod to admin pulls them from Mod
//     in the same update.
//   - Ordinary membership lives in the group_members collection.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Avatar      string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Cover       string             `bson:"cover,omitempty" json:"cover,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`

	Admin []primitive.ObjectID `bson:"admin" json:"admin"`
	Mod   []primitive.ObjectID `bson:"mod" json:"mod"`

	Privacy            Privacy `bson:"privacy" json:"privacy"`
	NeedApprovedToJoin bool    `bson:"need_approved_to_join" json:"need_approved_to_join"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
