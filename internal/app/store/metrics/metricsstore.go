// internal/app/store/metrics/metricsstore.go
package metricsstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of service-wide totals reported to global admins.
type Counts struct {
	Groups          int64 `json:"groups"`
	ApprovalGroups  int64 `json:"approval_groups"`
	Members         int64 `json:"members"`
	PendingRequests int64 `json:"pending_requests"`
	Banned          int64 `json:"banned"`
}

// FetchCounts returns the service-wide totals.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchCounts(ctx context.Context, db *mongo.Database) Counts {
	var out Counts
	groups := db.Collection("groups")
	members := db.Collection("group_members")

	if n, err := groups.CountDocuments(ctx, bson.M{}); err == nil {
		out.Groups = n
	}
	if n, err := groups.CountDocuments(ctx, bson.M{"need_approved_to_join": true}); err == nil {
		out.ApprovalGroups = n
	}
	if n, err := members.CountDocuments(ctx, bson.M{"accepted": true, "banned": false}); err == nil {
		out.Members = n
	}
	if n, err := members.CountDocuments(ctx, bson.M{"accepted": false, "banned": false}); err == nil {
		out.PendingRequests = n
	}
	if n, err := members.CountDocuments(ctx, bson.M{"banned": true}); err == nil {
		out.Banned = n
	}

	return out
}
