package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserCtx(t *testing.T) {
	validID := primitive.NewObjectID()

	tests := []struct {
		name     string
		identity *auth.Identity
		wantOK   bool
		wantRole string
	}{
		{"no identity", nil, false, ""},
		{"malformed id", &auth.Identity{UserID: "nope", Role: "admin"}, false, ""},
		{"regular user", &auth.Identity{UserID: validID.Hex(), Role: "user"}, true, authz.GlobalUser},
		{"uppercase admin", &auth.Identity{UserID: validID.Hex(), Role: "ADMIN"}, true, authz.GlobalAdmin},
		{"empty role", &auth.Identity{UserID: validID.Hex(), Role: ""}, true, authz.GlobalUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.identity != nil {
				req = auth.WithTestUser(req, tt.identity)
			}
			c, ok := authz.UserCtx(req)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if !c.UserID.IsZero() {
					t.Error("failed lookup should return zero caller")
				}
				return
			}
			if c.UserID != validID {
				t.Errorf("UserID = %s, want %s", c.UserID.Hex(), validID.Hex())
			}
			if c.GlobalRole != tt.wantRole {
				t.Errorf("GlobalRole = %q, want %q", c.GlobalRole, tt.wantRole)
			}
		})
	}
}

func TestCaller_Overrides(t *testing.T) {
	tests := []struct {
		role        string
		admin, mod  bool
		hasOverride bool
	}{
		{authz.GlobalAdmin, true, false, true},
		{authz.GlobalMod, false, true, true},
		{authz.GlobalUser, false, false, false},
		{"", false, false, false},
	}
	for _, tt := range tests {
		c := authz.Caller{UserID: primitive.NewObjectID(), GlobalRole: tt.role}
		if c.IsGlobalAdmin() != tt.admin || c.IsGlobalMod() != tt.mod || c.HasOverride() != tt.hasOverride {
			t.Errorf("role %q: admin=%v mod=%v override=%v", tt.role, c.IsGlobalAdmin(), c.IsGlobalMod(), c.HasOverride())
		}
	}
}
