package auditlog_test

import (
	"testing"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.GroupCreated(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "x")
	logger.MemberRemoved(ctx, primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID())
}

func TestLogger_Modes(t *testing.T) {
	tests := []struct {
		mode    string
		wantDB  int
		wantZap int
	}{
		{"off", 0, 0},
		{"db", 1, 0},
		{"log", 0, 1},
		{"all", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			core, logs := observer.New(zap.InfoLevel)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := auditlog.New(store, zap.New(core), auditlog.Config{Mode: tt.mode})
			groupID, userID := primitive.NewObjectID(), primitive.NewObjectID()
			logger.MemberJoined(ctx, groupID, userID)

			events, err := store.GetByGroup(ctx, groupID, 10)
			if err != nil {
				t.Fatalf("GetByGroup failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("db events = %d, want %d", len(events), tt.wantDB)
			}
			if got := logs.FilterMessage("audit event").Len(); got != tt.wantZap {
				t.Errorf("zap events = %d, want %d", got, tt.wantZap)
			}
		})
	}
}

func TestLogger_OriginFromContext(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Mode: "db"})
	ctx = auditlog.WithOrigin(ctx, auditlog.Origin{IP: "10.1.2.3", RequestID: "req-123"})

	actor, groupID, userID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	logger.MemberBanned(ctx, actor, groupID, userID)

	events, err := store.GetByGroup(ctx, groupID, 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.IP != "10.1.2.3" || e.RequestID != "req-123" {
		t.Errorf("origin not recorded: ip=%q request_id=%q", e.IP, e.RequestID)
	}
	if e.EventType != audit.EventMemberBanned || e.Category != audit.CategoryMembership {
		t.Errorf("unexpected classification: %s/%s", e.Category, e.EventType)
	}
	if e.ActorID == nil || *e.ActorID != actor || e.UserID == nil || *e.UserID != userID {
		t.Error("actor and user should be recorded")
	}
}

func TestLogger_MemberRemoved_Kind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Mode: "db"})
	groupID := primitive.NewObjectID()
	self, admin, target := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	logger.MemberRemoved(ctx, self, groupID, self)
	logger.MemberRemoved(ctx, admin, groupID, target)

	events, err := store.Query(ctx, audit.QueryFilter{GroupID: &groupID, EventType: audit.EventMemberRemoved})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	kinds := map[string]int{}
	for _, e := range events {
		kinds[e.Details["kind"]]++
	}
	if kinds["leave"] != 1 || kinds["kick"] != 1 {
		t.Errorf("kinds = %v, want one leave and one kick", kinds)
	}
}
