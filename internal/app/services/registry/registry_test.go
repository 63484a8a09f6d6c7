package registry

import (
	"sync"
	"testing"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *mongo.Database, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDBWithSchema(t)
	al := auditlog.New(audit.New(db), zap.NewNop(), auditlog.Config{Mode: "db"})
	return New(db, al, zap.NewNop(), 0), db, testutil.NewFixtures(t, db)
}

func user(id primitive.ObjectID) authz.Caller {
	return authz.Caller{UserID: id, GlobalRole: authz.GlobalUser}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (%v)", got, kind, err)
	}
}

func TestCreateGroup(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := primitive.NewObjectID()
	g, err := svc.CreateGroup(ctx, user(creator), CreateInput{
		Name:               "<b>Chess</b> Club",
		Description:        "<p>Weekly</p><script>alert(1)</script>",
		Privacy:            models.PrivacyPrivate,
		NeedApprovedToJoin: true,
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if g.Name != "Chess Club" {
		t.Errorf("Name = %q, want %q", g.Name, "Chess Club")
	}
	if g.Description != "<p>Weekly</p>" {
		t.Errorf("Description = %q", g.Description)
	}
	if len(g.Admin) != 1 || g.Admin[0] != creator {
		t.Errorf("Admin = %v, want [%s]", g.Admin, creator.Hex())
	}
	if len(g.Mod) != 0 {
		t.Errorf("Mod = %v, want empty", g.Mod)
	}

	stored, err := svc.Group(ctx, g.ID)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if !stored.NeedApprovedToJoin || stored.Privacy != models.PrivacyPrivate {
		t.Errorf("stored group = %+v", stored)
	}
}

func TestCreateGroup_Invalid(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name string
		in   CreateInput
		kind apperr.Kind
	}{
		{"empty name", CreateInput{Name: "  "}, apperr.BadRequest},
		{"markup only name", CreateInput{Name: "<i></i>"}, apperr.BadRequest},
		{"bad privacy", CreateInput{Name: "x", Privacy: 7}, apperr.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGroup(ctx, user(primitive.NewObjectID()), tt.in)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestUpdateGroup_Partial(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, "Original", admin)

	loc := "Berlin"
	approval := true
	updated, err := svc.UpdateGroup(ctx, user(admin), g.ID, UpdateInput{
		Location:           &loc,
		NeedApprovedToJoin: &approval,
	})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if updated.Name != "Original" || updated.Description != "Test group" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.Location != "Berlin" || !updated.NeedApprovedToJoin {
		t.Errorf("patched fields not applied: %+v", updated)
	}
}

func TestUpdateGroup_Permissions(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin, mod, outsider := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	g := fx.CreateGroupWithRoles(ctx, "Roles", []primitive.ObjectID{admin}, []primitive.ObjectID{mod})
	name := "Renamed"

	tests := []struct {
		name    string
		caller  authz.Caller
		wantErr apperr.Kind
		ok      bool
	}{
		{"admin", user(admin), 0, true},
		{"mod", user(mod), 0, true},
		{"global admin", authz.Caller{UserID: outsider, GlobalRole: authz.GlobalAdmin}, 0, true},
		{"global mod", authz.Caller{UserID: outsider, GlobalRole: authz.GlobalMod}, 0, true},
		{"outsider", user(outsider), apperr.PermissionDenied, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateGroup(ctx, tt.caller, g.ID, UpdateInput{Name: &name})
			if tt.ok {
				if err != nil {
					t.Fatalf("UpdateGroup: %v", err)
				}
				return
			}
			wantKind(t, err, tt.wantErr)
		})
	}

	_, err := svc.UpdateGroup(ctx, user(admin), primitive.NewObjectID(), UpdateInput{Name: &name})
	wantKind(t, err, apperr.NotFound)
}

func TestDeleteGroup_Cascade(t *testing.T) {
	svc, db, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, "Doomed", admin)
	other := fx.CreateGroup(ctx, "Survivor", admin)
	fx.CreateMember(ctx, g.ID, primitive.NewObjectID())
	fx.CreatePending(ctx, g.ID, primitive.NewObjectID())
	fx.CreateMember(ctx, other.ID, primitive.NewObjectID())

	deleted, err := svc.DeleteGroup(ctx, user(admin), g.ID)
	if err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if deleted.ID != g.ID {
		t.Errorf("deleted ID = %s, want %s", deleted.ID.Hex(), g.ID.Hex())
	}

	n, _ := db.Collection("group_members").CountDocuments(ctx, bson.M{"group": g.ID})
	if n != 0 {
		t.Errorf("%d membership rows survived the delete", n)
	}
	n, _ = db.Collection("group_members").CountDocuments(ctx, bson.M{"group": other.ID})
	if n != 1 {
		t.Errorf("other group's rows = %d, want 1", n)
	}
	_, err = svc.Group(ctx, g.ID)
	wantKind(t, err, apperr.NotFound)
}

func TestDeleteGroup_Errors(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin, mod := primitive.NewObjectID(), primitive.NewObjectID()
	g := fx.CreateGroupWithRoles(ctx, "Guarded", []primitive.ObjectID{admin}, []primitive.ObjectID{mod})

	_, err := svc.DeleteGroup(ctx, user(mod), g.ID)
	wantKind(t, err, apperr.PermissionDenied)

	_, err = svc.DeleteGroup(ctx, user(admin), primitive.NewObjectID())
	wantKind(t, err, apperr.NotFound)

	if _, err := svc.Group(ctx, g.ID); err != nil {
		t.Fatalf("group should survive a denied delete: %v", err)
	}
}

func TestAppointUser(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin, target := primitive.NewObjectID(), primitive.NewObjectID()
	g := fx.CreateGroup(ctx, "Appoint", admin)

	out, err := svc.AppointUser(ctx, user(admin), g.ID, target, "mod")
	if err != nil {
		t.Fatalf("appoint mod: %v", err)
	}
	if len(out.Mod) != 1 || out.Mod[0] != target {
		t.Fatalf("Mod = %v, want [%s]", out.Mod, target.Hex())
	}

	_, err = svc.AppointUser(ctx, user(admin), g.ID, target, "mod")
	wantKind(t, err, apperr.AlreadyExists)

	out, err = svc.AppointUser(ctx, user(admin), g.ID, target, "ADMIN")
	if err != nil {
		t.Fatalf("promote to admin: %v", err)
	}
	if len(out.Admin) != 2 || len(out.Mod) != 0 {
		t.Fatalf("after promotion admin=%v mod=%v", out.Admin, out.Mod)
	}

	_, err = svc.AppointUser(ctx, user(admin), g.ID, target, "mod")
	wantKind(t, err, apperr.AlreadyExists)
}

func TestAppointUser_Errors(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin, mod := primitive.NewObjectID(), primitive.NewObjectID()
	g := fx.CreateGroupWithRoles(ctx, "Errors", []primitive.ObjectID{admin}, []primitive.ObjectID{mod})
	target := primitive.NewObjectID()

	tests := []struct {
		name    string
		caller  authz.Caller
		groupID primitive.ObjectID
		role    string
		kind    apperr.Kind
	}{
		{"missing group", user(admin), primitive.NewObjectID(), "mod", apperr.NotFound},
		{"mod caller", user(mod), g.ID, "mod", apperr.PermissionDenied},
		{"global mod caller", authz.Caller{UserID: target, GlobalRole: authz.GlobalMod}, g.ID, "mod", apperr.PermissionDenied},
		{"bad role", user(admin), g.ID, "owner", apperr.InvalidArgument},
		{"bad role from non admin", user(mod), g.ID, "owner", apperr.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AppointUser(ctx, tt.caller, tt.groupID, target, tt.role)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestAppointUser_GlobalAdmin(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateGroup(ctx, "Override", primitive.NewObjectID())
	staff := authz.Caller{UserID: primitive.NewObjectID(), GlobalRole: authz.GlobalAdmin}
	target := primitive.NewObjectID()

	out, err := svc.AppointUser(ctx, staff, g.ID, target, "admin")
	if err != nil {
		t.Fatalf("AppointUser: %v", err)
	}
	if len(out.Admin) != 2 {
		t.Errorf("Admin = %v, want 2 entries", out.Admin)
	}
}

func TestAppointUser_ConcurrentDistinctTargets(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, "Busy", admin)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AppointUser(ctx, user(admin), g.ID, primitive.NewObjectID(), "mod"); err != nil {
				t.Errorf("AppointUser: %v", err)
			}
		}()
	}
	wg.Wait()

	out, err := svc.Group(ctx, g.ID)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(out.Mod) != n {
		t.Errorf("Mod has %d entries, want %d", len(out.Mod), n)
	}
}

func TestListManagedGroups(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := primitive.NewObjectID()
	fx.CreateGroup(ctx, "Mine", me)
	fx.CreateGroupWithRoles(ctx, "Moderated", []primitive.ObjectID{primitive.NewObjectID()}, []primitive.ObjectID{me})
	fx.CreateGroup(ctx, "Not mine", primitive.NewObjectID())

	res, err := svc.ListManagedGroups(ctx, me, 1)
	if err != nil {
		t.Fatalf("ListManagedGroups: %v", err)
	}
	if res.TotalCount != 2 || len(res.Results) != 2 {
		t.Errorf("got %d/%d groups, want 2", len(res.Results), res.TotalCount)
	}
	if res.Page != 1 || res.TotalPages != 1 {
		t.Errorf("page=%d totalPages=%d", res.Page, res.TotalPages)
	}
}

func TestGroupHistory(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	g, err := svc.CreateGroup(ctx, user(admin), CreateInput{Name: "Audited"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := svc.AppointUser(ctx, user(admin), g.ID, primitive.NewObjectID(), "mod"); err != nil {
		t.Fatalf("AppointUser: %v", err)
	}

	events, err := svc.GroupHistory(ctx, user(admin), g.ID, 10)
	if err != nil {
		t.Fatalf("GroupHistory: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].EventType != audit.EventUserAppointed {
		t.Errorf("newest event = %s, want %s", events[0].EventType, audit.EventUserAppointed)
	}

	_, err = svc.GroupHistory(ctx, user(primitive.NewObjectID()), g.ID, 10)
	wantKind(t, err, apperr.PermissionDenied)
}

func TestStats(t *testing.T) {
	svc, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	g := fx.CreateGroup(ctx, "Counted", admin)
	fx.CreateMember(ctx, g.ID, primitive.NewObjectID())

	_, err := svc.Stats(ctx, user(admin))
	wantKind(t, err, apperr.PermissionDenied)

	counts, err := svc.Stats(ctx, authz.Caller{UserID: primitive.NewObjectID(), GlobalRole: authz.GlobalAdmin})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts.Groups != 1 || counts.Members != 1 {
		t.Errorf("counts = %+v, want 1 group and 1 member", counts)
	}
}
