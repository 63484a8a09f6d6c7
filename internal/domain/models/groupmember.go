// internal/domain/models/groupmember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupMember links a user to a group. Exactly one document per (group, user).
//
// Accepted=false is a pending join request. Banned=true blocks the user from
// joining again until unbanned.
type GroupMember struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"group" json:"group"`
	UserID    primitive.ObjectID `bson:"user" json:"user"`
	Accepted  bool               `bson:"accepted" json:"accepted"`
	Banned    bool               `bson:"banned" json:"banned"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
