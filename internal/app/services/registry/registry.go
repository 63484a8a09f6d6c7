// internal/app/services/registry/registry.go
//
// Package registry owns groups: creation, attribute updates, deletion and
// the admin/mod sets.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/grouphub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/grouphub/internal/app/store/audit"
	memberstore "github.com/dalemusser/grouphub/internal/app/store/groupmembers"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	metricsstore "github.com/dalemusser/grouphub/internal/app/store/metrics"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/app/system/txn"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgGroupNotFound = "Group not exist"
	msgNoPermission  = "You do not have permission"
)

type Service struct {
	db       *mongo.Database
	groups   *groupstore.Store
	members  *memberstore.Store
	events   *audit.Store
	audit    *auditlog.Logger
	log      *zap.Logger
	pageSize int
}

// New wires the registry to db. pageSize <= 0 uses paging.PageSize.
func New(db *mongo.Database, al *auditlog.Logger, logger *zap.Logger, pageSize int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		groups:   groupstore.New(db),
		members:  memberstore.New(db),
		events:   audit.New(db),
		audit:    al,
		log:      logger,
		pageSize: pageSize,
	}
}

// CreateInput is a new group's attributes.
type CreateInput struct {
	Name               string
	Description        string
	Privacy            models.Privacy
	NeedApprovedToJoin bool
}

// UpdateInput carries the attributes to change; nil fields are untouched.
type UpdateInput struct {
	Name               *string
	Avatar             *string
	Cover              *string
	Description        *string
	Location           *string
	Privacy            *models.Privacy
	NeedApprovedToJoin *bool
}

// CreateGroup makes caller the sole admin of a new group.
func (s *Service) CreateGroup(ctx context.Context, caller authz.Caller, in CreateInput) (models.Group, error) {
	name := htmlsanitize.StripTags(in.Name)
	if name == "" {
		return models.Group{}, apperr.NewBadRequest("Group name is required")
	}
	if !in.Privacy.Valid() {
		return models.Group{}, apperr.NewInvalidArgument("Invalid privacy")
	}

	g, err := s.groups.Create(ctx, models.Group{
		Name:               name,
		Description:        htmlsanitize.Sanitize(in.Description),
		Admin:              []primitive.ObjectID{caller.UserID},
		Mod:                []primitive.ObjectID{},
		Privacy:            in.Privacy,
		NeedApprovedToJoin: in.NeedApprovedToJoin,
	})
	if err != nil {
		return models.Group{}, s.internal("create group", fmt.Errorf("insert group: %w", err))
	}

	s.audit.GroupCreated(ctx, caller.UserID, g.ID, g.Name)
	return g, nil
}

// UpdateGroup applies the non-nil fields of in. Caller must be an admin or
// mod of the group.
func (s *Service) UpdateGroup(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID, in UpdateInput) (models.Group, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, s.internal("update group", err)
	}
	if !grouppolicy.EffectiveRole(caller, g).CanModerate() {
		return models.Group{}, apperr.NewPermissionDenied(msgNoPermission)
	}

	patch, changed, err := buildPatch(in)
	if err != nil {
		return models.Group{}, err
	}

	updated, err := s.groups.Update(ctx, groupID, patch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, apperr.NewNotFound(msgGroupNotFound)
	}
	if err != nil {
		return models.Group{}, s.internal("update group", fmt.Errorf("update group: %w", err))
	}

	if len(changed) > 0 {
		s.audit.GroupUpdated(ctx, caller.UserID, groupID, strings.Join(changed, ","))
	}
	return updated, nil
}

func buildPatch(in UpdateInput) (groupstore.Patch, []string, error) {
	var (
		p       groupstore.Patch
		changed []string
	)
	if in.Name != nil {
		name := htmlsanitize.StripTags(*in.Name)
		if name == "" {
			return p, nil, apperr.NewBadRequest("Group name is required")
		}
		p.Name = &name
		changed = append(changed, "name")
	}
	if in.Avatar != nil {
		p.Avatar = in.Avatar
		changed = append(changed, "avatar")
	}
	if in.Cover != nil {
		p.Cover = in.Cover
		changed = append(changed, "cover")
	}
	if in.Description != nil {
		desc := htmlsanitize.Sanitize(*in.Description)
		p.Description = &desc
		changed = append(changed, "description")
	}
	if in.Location != nil {
		loc := htmlsanitize.StripTags(*in.Location)
		p.Location = &loc
		changed = append(changed, "location")
	}
	if in.Privacy != nil {
		if !in.Privacy.Valid() {
			return p, nil, apperr.NewInvalidArgument("Invalid privacy")
		}
		p.Privacy = in.Privacy
		changed = append(changed, "privacy")
	}
	if in.NeedApprovedToJoin != nil {
		p.NeedApprovedToJoin = in.NeedApprovedToJoin
		changed = append(changed, "need_approved_to_join")
	}
	return p, changed, nil
}

// DeleteGroup removes the group and every membership row for it in one
// transaction. Caller must be an admin.
func (s *Service) DeleteGroup(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID) (models.Group, error) {
	var (
		deleted models.Group
		removed int64
	)
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		g, err := s.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if grouppolicy.EffectiveRole(caller, g) != grouppolicy.RoleAdmin {
			return apperr.NewPermissionDenied(msgNoPermission)
		}

		n, err := s.members.DeleteByGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		gone, err := s.groups.Delete(ctx, groupID)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		if gone == 0 {
			return apperr.NewNotFound(msgGroupNotFound)
		}
		deleted, removed = g, n
		return nil
	})
	if err != nil {
		return models.Group{}, s.internal("delete group", err)
	}

	s.audit.GroupDeleted(ctx, caller.UserID, groupID, removed)
	return deleted, nil
}

// AppointUser gives target the admin or mod role. The target does not need
// to be a member. The write only lands while the caller is still an admin.
func (s *Service) AppointUser(ctx context.Context, caller authz.Caller, groupID, target primitive.ObjectID, role string) (models.Group, error) {
	newRole, _ := grouppolicy.ParseRole(role)

	var out models.Group
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		g, err := s.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if err := grouppolicy.AuthorizeAppoint(grouppolicy.EffectiveRole(caller, g), g, target, newRole); err != nil {
			return PolicyError(err)
		}

		if newRole == grouppolicy.RoleAdmin {
			out, err = s.groups.AddAdmin(ctx, groupID, target, ActorGuard(caller))
		} else {
			out, err = s.groups.AddMod(ctx, groupID, target, ActorGuard(caller))
		}
		if errors.Is(err, groupstore.ErrStale) {
			return apperr.NewConflict("The group changed, please try again")
		}
		if err != nil {
			return fmt.Errorf("appoint %s: %w", newRole, err)
		}
		return nil
	})
	if err != nil {
		return models.Group{}, s.internal("appoint user", err)
	}

	s.audit.UserAppointed(ctx, caller.UserID, groupID, target, string(newRole))
	return out, nil
}

// Group returns a group by id.
func (s *Service) Group(ctx context.Context, groupID primitive.ObjectID) (models.Group, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, s.internal("get group", err)
	}
	return g, nil
}

// ListManagedGroups pages through groups userID administers or moderates.
func (s *Service) ListManagedGroups(ctx context.Context, userID primitive.ObjectID, page int) (paging.Page[models.Group], error) {
	res, err := s.groups.ListManagedBy(ctx, userID, page, s.pageSize)
	if err != nil {
		return res, s.internal("list managed groups", err)
	}
	return res, nil
}

// GroupHistory returns the newest audit events for a group. Admins only.
func (s *Service) GroupHistory(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID, limit int64) ([]audit.Event, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, s.internal("group history", err)
	}
	if grouppolicy.EffectiveRole(caller, g) != grouppolicy.RoleAdmin {
		return nil, apperr.NewPermissionDenied(msgNoPermission)
	}
	events, err := s.events.GetByGroup(ctx, groupID, limit)
	if err != nil {
		return nil, s.internal("group history", err)
	}
	return events, nil
}

// Stats returns service-wide totals. Global admins only.
func (s *Service) Stats(ctx context.Context, caller authz.Caller) (metricsstore.Counts, error) {
	if !caller.IsGlobalAdmin() {
		return metricsstore.Counts{}, apperr.NewPermissionDenied(msgNoPermission)
	}
	return metricsstore.FetchCounts(ctx, s.db), nil
}

// loadGroup maps a missing group to NotFound. Other errors are returned
// unmapped so a transaction can still recognize them.
func (s *Service) loadGroup(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, apperr.NewNotFound(msgGroupNotFound)
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// internal passes domain errors through and logs anything else before hiding
// it behind an Internal error.
func (s *Service) internal(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.log.Error("registry operation failed", zap.String("op", op), zap.Error(err))
	return apperr.NewInternal(err)
}

// ActorGuard returns the admin whose membership in the admin set must still
// hold when an admin/mod write lands. Callers acting through a global role
// are not group admins, so they get no guard.
func ActorGuard(c authz.Caller) *primitive.ObjectID {
	if c.HasOverride() {
		return nil
	}
	id := c.UserID
	return &id
}

// PolicyError maps grouppolicy decisions to client-facing errors.
func PolicyError(err error) error {
	switch {
	case errors.Is(err, grouppolicy.ErrNotPermitted):
		return apperr.Wrap(apperr.PermissionDenied, msgNoPermission, err)
	case errors.Is(err, grouppolicy.ErrInvalidRole):
		return apperr.Wrap(apperr.InvalidArgument, "Invalid role specified", err)
	case errors.Is(err, grouppolicy.ErrAlreadyHolds):
		return apperr.Wrap(apperr.AlreadyExists, "The user already has this role", err)
	case errors.Is(err, grouppolicy.ErrWouldDemote):
		return apperr.Wrap(apperr.AlreadyExists, "The user is already an admin of this group", err)
	case errors.Is(err, grouppolicy.ErrLastAdmin):
		return apperr.Wrap(apperr.InvalidOperation, "You are the only admin, assign another admin before leaving", err)
	case errors.Is(err, grouppolicy.ErrNotGovernor):
		return apperr.Wrap(apperr.BadRequest, "User is not an admin or mod in the group", err)
	default:
		return err
	}
}
