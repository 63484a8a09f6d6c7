package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	groupID := primitive.NewObjectID()
	event := audit.Event{
		Category:  audit.CategoryMembership,
		EventType: audit.EventMemberJoined,
		GroupID:   &groupID,
		UserID:    &userID,
		ActorID:   &userID,
		IP:        "192.168.1.1",
		Success:   true,
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestStore_Log_WithDetails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryRole,
		EventType: audit.EventUserAppointed,
		GroupID:   &groupID,
		Success:   true,
		Details:   map[string]string{"role": "mod"},
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByGroup(ctx, groupID, 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 1 || events[0].Details["role"] != "mod" {
		t.Errorf("details not round-tripped: %+v", events)
	}
}

func TestStore_GetByGroup_NewestFirstAndLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := store.Log(ctx, audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Category:  audit.CategoryMembership,
			EventType: audit.EventMemberJoined,
			GroupID:   &groupID,
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.GetByGroup(ctx, groupID, 3)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if !events[0].Timestamp.After(events[1].Timestamp) {
		t.Error("expected newest event first")
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g1, g2 := primitive.NewObjectID(), primitive.NewObjectID()
	actor := primitive.NewObjectID()
	seed := []audit.Event{
		{Category: audit.CategoryGroup, EventType: audit.EventGroupCreated, GroupID: &g1, ActorID: &actor, Success: true},
		{Category: audit.CategoryMembership, EventType: audit.EventMemberBanned, GroupID: &g1, ActorID: &actor, Success: true},
		{Category: audit.CategoryMembership, EventType: audit.EventMemberBanned, GroupID: &g2, Success: true},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{"by group", audit.QueryFilter{GroupID: &g1}, 2},
		{"by actor", audit.QueryFilter{ActorID: &actor}, 2},
		{"by category", audit.QueryFilter{Category: audit.CategoryMembership}, 2},
		{"by event type", audit.QueryFilter{EventType: audit.EventMemberBanned, GroupID: &g2}, 1},
		{"offset", audit.QueryFilter{Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
			n, err := store.CountByFilter(ctx, audit.QueryFilter{GroupID: tt.filter.GroupID, ActorID: tt.filter.ActorID, Category: tt.filter.Category, EventType: tt.filter.EventType})
			if err != nil {
				t.Fatalf("CountByFilter failed: %v", err)
			}
			if tt.filter.Offset == 0 && n != int64(tt.want) {
				t.Errorf("CountByFilter = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestStore_Query_ByTimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	for _, ts := range []time.Time{old, now} {
		if err := store.Log(ctx, audit.Event{Timestamp: ts, Category: audit.CategoryGroup, EventType: audit.EventGroupUpdated, Success: true}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	since := now.Add(-time.Hour)
	events, err := store.Query(ctx, audit.QueryFilter{StartTime: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 recent event, got %d", len(events))
	}
}

func TestStore_Query_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events, err := store.GetByGroup(ctx, primitive.NewObjectID(), 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("expected empty, non-nil slice, got %v", events)
	}
}
