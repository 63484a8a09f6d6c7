package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateGroup inserts an open group administered by admin.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, admin primitive.ObjectID) models.Group {
	f.t.Helper()
	return f.insertGroup(ctx, name, []primitive.ObjectID{admin}, nil, false)
}

// CreateApprovalGroup inserts a group whose joins need approval.
func (f *Fixtures) CreateApprovalGroup(ctx context.Context, name string, admin primitive.ObjectID) models.Group {
	f.t.Helper()
	return f.insertGroup(ctx, name, []primitive.ObjectID{admin}, nil, true)
}

// CreateGroupWithRoles inserts a group with explicit admin and mod sets.
func (f *Fixtures) CreateGroupWithRoles(ctx context.Context, name string, admins, mods []primitive.ObjectID) models.Group {
	f.t.Helper()
	return f.insertGroup(ctx, name, admins, mods, false)
}

func (f *Fixtures) insertGroup(ctx context.Context, name string, admins, mods []primitive.ObjectID, approval bool) models.Group {
	f.t.Helper()

	if mods == nil {
		mods = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	g := models.Group{
		ID:                 primitive.NewObjectID(),
		Name:               name,
		Description:        "Test group",
		Admin:              admins,
		Mod:                mods,
		Privacy:            models.PrivacyPublic,
		NeedApprovedToJoin: approval,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create group fixture: %v", err)
	}
	return g
}

// CreateMember inserts an accepted, unbanned membership row.
func (f *Fixtures) CreateMember(ctx context.Context, groupID, userID primitive.ObjectID) models.GroupMember {
	f.t.Helper()
	return f.CreateMembership(ctx, groupID, userID, true, false)
}

// CreatePending inserts a pending join request.
func (f *Fixtures) CreatePending(ctx context.Context, groupID, userID primitive.ObjectID) models.GroupMember {
	f.t.Helper()
	return f.CreateMembership(ctx, groupID, userID, false, false)
}

// CreateMembership inserts a membership row with explicit flags.
func (f *Fixtures) CreateMembership(ctx context.Context, groupID, userID primitive.ObjectID, accepted, banned bool) models.GroupMember {
	f.t.Helper()

	m := models.GroupMember{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Accepted:  accepted,
		Banned:    banned,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("group_members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create membership fixture: %v", err)
	}
	return m
}
