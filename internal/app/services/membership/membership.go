// internal/app/services/membership/membership.go
//
// Package membership runs the per (group, user) lifecycle: join requests,
// approval, bans, leaving and kicks, plus removal of admins and mods.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/grouphub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/grouphub/internal/app/services/registry"
	memberstore "github.com/dalemusser/grouphub/internal/app/store/groupmembers"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/app/system/txn"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgGroupNotFound   = "Group not exist"
	msgRequestNotFound = "Request not exist"
	msgNoPermission    = "You do not have permission"
	msgUserBanned      = "The user have been banned of this group"
	msgAlreadyAccepted = "Request already accepted"
	msgInvalidRequest  = "The request is invalid"
)

type Service struct {
	db       *mongo.Database
	groups   *groupstore.Store
	members  *memberstore.Store
	audit    *auditlog.Logger
	log      *zap.Logger
	pageSize int
}

// New wires the service to db. pageSize <= 0 uses paging.PageSize.
func New(db *mongo.Database, al *auditlog.Logger, logger *zap.Logger, pageSize int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		groups:   groupstore.New(db),
		members:  memberstore.New(db),
		audit:    al,
		log:      logger,
		pageSize: pageSize,
	}
}

/* ------------------------------- join flow ------------------------------- */

// JoinGroup creates the caller's membership row: accepted right away for
// open groups, pending when the group needs approval.
func (s *Service) JoinGroup(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID) (models.GroupMember, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return models.GroupMember{}, s.internal("join group", err)
	}
	if grouppolicy.ResolveRole(g, caller.UserID).CanModerate() {
		return models.GroupMember{}, apperr.NewAlreadyExists("You are already in this group")
	}

	existing, err := s.members.Find(ctx, groupID, caller.UserID)
	switch {
	case err == nil:
		return models.GroupMember{}, joinRejection(existing)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return models.GroupMember{}, s.internal("join group", fmt.Errorf("find membership: %w", err))
	}

	m, err := s.members.Create(ctx, groupID, caller.UserID, !g.NeedApprovedToJoin)
	if errors.Is(err, memberstore.ErrDuplicateMember) {
		return models.GroupMember{}, apperr.Wrap(apperr.BadRequest,
			"Something went wrong or you have been banned from the group", err)
	}
	if err != nil {
		return models.GroupMember{}, s.internal("join group", fmt.Errorf("create membership: %w", err))
	}

	if m.Accepted {
		s.audit.MemberJoined(ctx, groupID, caller.UserID)
	} else {
		s.audit.JoinRequested(ctx, groupID, caller.UserID)
	}
	return m, nil
}

func joinRejection(m models.GroupMember) error {
	switch grouppolicy.StateOf(&m) {
	case grouppolicy.StateBanned:
		return apperr.NewAlreadyExists("You have been banned from this group")
	case grouppolicy.StateMember:
		return apperr.NewAlreadyExists("You are already a member of this group")
	default:
		return apperr.NewAlreadyExists("You have sent join request, you do not need to send it again")
	}
}

// AcceptJoinRequest turns a pending request into a membership.
func (s *Service) AcceptJoinRequest(ctx context.Context, caller authz.Caller, requestID primitive.ObjectID) (models.GroupMember, error) {
	req, err := s.authorizeRequest(ctx, caller, requestID)
	if err != nil {
		return models.GroupMember{}, err
	}

	m, err := s.members.Accept(ctx, requestID)
	if errors.Is(err, memberstore.ErrStateChanged) {
		return models.GroupMember{}, apperr.Wrap(apperr.BadRequest, "Request already handled", err)
	}
	if err != nil {
		return models.GroupMember{}, s.internal("accept join request", fmt.Errorf("accept: %w", err))
	}

	s.audit.JoinAccepted(ctx, caller.UserID, req.GroupID, req.UserID)
	return m, nil
}

// RejectJoinRequest deletes a pending request.
func (s *Service) RejectJoinRequest(ctx context.Context, caller authz.Caller, requestID primitive.ObjectID) (models.GroupMember, error) {
	req, err := s.authorizeRequest(ctx, caller, requestID)
	if err != nil {
		return models.GroupMember{}, err
	}

	m, err := s.members.DeletePending(ctx, requestID)
	if errors.Is(err, memberstore.ErrStateChanged) {
		return models.GroupMember{}, apperr.Wrap(apperr.BadRequest, "Request already handled", err)
	}
	if err != nil {
		return models.GroupMember{}, s.internal("reject join request", fmt.Errorf("reject: %w", err))
	}

	s.audit.JoinRejected(ctx, caller.UserID, req.GroupID, req.UserID)
	return m, nil
}

// authorizeRequest loads a join request and checks the caller may decide it.
// A request whose group is gone triggers removal of every row still pointing
// at that group.
func (s *Service) authorizeRequest(ctx context.Context, caller authz.Caller, requestID primitive.ObjectID) (models.GroupMember, error) {
	req, err := s.members.GetByID(ctx, requestID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMember{}, apperr.NewNotFound(msgRequestNotFound)
	}
	if err != nil {
		return models.GroupMember{}, s.internal("load join request", fmt.Errorf("get membership: %w", err))
	}
	if req.Banned {
		return models.GroupMember{}, apperr.NewPermissionDenied(msgUserBanned)
	}
	if req.Accepted {
		return models.GroupMember{}, apperr.NewBadRequest(msgAlreadyAccepted)
	}

	g, err := s.groups.GetByID(ctx, req.GroupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMember{}, s.repairOrphans(ctx, req.GroupID)
	}
	if err != nil {
		return models.GroupMember{}, s.internal("load join request", fmt.Errorf("get group: %w", err))
	}
	if !grouppolicy.EffectiveRole(caller, g).CanModerate() {
		return models.GroupMember{}, apperr.NewPermissionDenied(msgNoPermission)
	}
	return req, nil
}

// repairOrphans deletes membership rows left behind by a deleted group and
// returns the Common error reported to the caller.
func (s *Service) repairOrphans(ctx context.Context, groupID primitive.ObjectID) error {
	n, err := s.members.DeleteByGroup(ctx, groupID)
	if err != nil {
		s.log.Warn("orphan membership cleanup failed",
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
	} else {
		s.audit.OrphanRepaired(ctx, groupID, n)
	}
	return apperr.NewCommon(msgInvalidRequest)
}

// SweepOrphans deletes the membership rows of every group that no longer
// exists and returns how many rows went.
func (s *Service) SweepOrphans(ctx context.Context) (int64, error) {
	ids, err := s.members.GroupIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list member groups: %w", err)
	}
	live, err := s.groups.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load groups: %w", err)
	}

	var total int64
	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		n, err := s.members.DeleteByGroup(ctx, id)
		if err != nil {
			return total, fmt.Errorf("delete orphans of %s: %w", id.Hex(), err)
		}
		total += n
		s.audit.OrphanRepaired(ctx, id, n)
	}
	return total, nil
}

/* --------------------------------- bans ---------------------------------- */

// ToggleBan sets target's banned flag. Asking for the state the row is
// already in fails AlreadyExists.
func (s *Service) ToggleBan(ctx context.Context, caller authz.Caller, groupID, target primitive.ObjectID, banned bool) (models.GroupMember, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return models.GroupMember{}, s.internal("toggle ban", err)
	}
	if !grouppolicy.EffectiveRole(caller, g).CanModerate() {
		return models.GroupMember{}, apperr.NewPermissionDenied(msgNoPermission)
	}

	row, err := s.members.Find(ctx, groupID, target)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMember{}, apperr.NewNotFound("User is not in the group")
	}
	if err != nil {
		return models.GroupMember{}, s.internal("toggle ban", fmt.Errorf("find membership: %w", err))
	}
	if row.Banned == banned {
		return models.GroupMember{}, alreadyBanned(banned)
	}

	m, err := s.members.SetBanned(ctx, row.ID, banned)
	if errors.Is(err, memberstore.ErrStateChanged) {
		// Someone else flipped it first, or the row was removed.
		current, ferr := s.members.GetByID(ctx, row.ID)
		if ferr == nil && current.Banned == banned {
			return models.GroupMember{}, alreadyBanned(banned)
		}
		return models.GroupMember{}, apperr.Wrap(apperr.Conflict, "The membership changed, please try again", err)
	}
	if err != nil {
		return models.GroupMember{}, s.internal("toggle ban", fmt.Errorf("set banned: %w", err))
	}

	if banned {
		s.audit.MemberBanned(ctx, caller.UserID, groupID, target)
	} else {
		s.audit.MemberUnbanned(ctx, caller.UserID, groupID, target)
	}
	return m, nil
}

func alreadyBanned(banned bool) error {
	if banned {
		return apperr.NewAlreadyExists("The user already have been banned")
	}
	return apperr.NewAlreadyExists("The user already have been un banned")
}

/* ------------------------------- removal --------------------------------- */

// RemoveUserInGroup removes target from the group. Admin and mod targets lose
// that role (their membership row, if any, stays); everyone else loses their
// membership row. Banned rows are never removed here.
func (s *Service) RemoveUserInGroup(ctx context.Context, caller authz.Caller, groupID, target primitive.ObjectID) error {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return s.internal("remove user", err)
	}

	if grouppolicy.ResolveRole(g, target).CanModerate() {
		return s.removeGovernor(ctx, caller, groupID, target)
	}

	if caller.UserID != target && !grouppolicy.EffectiveRole(caller, g).CanModerate() {
		return apperr.NewPermissionDenied(msgNoPermission)
	}
	if _, err := s.members.RemoveUnbanned(ctx, groupID, target); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return s.missedRemoval(ctx, groupID, target)
		}
		return s.internal("remove user", fmt.Errorf("remove membership: %w", err))
	}

	s.audit.MemberRemoved(ctx, caller.UserID, groupID, target)
	return nil
}

// missedRemoval explains a removal that deleted nothing. A banned row stays
// put so the ban keeps blocking rejoins.
func (s *Service) missedRemoval(ctx context.Context, groupID, target primitive.ObjectID) error {
	m, err := s.members.Find(ctx, groupID, target)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NewNotFound("The user is not in the group")
	}
	if err != nil {
		return s.internal("remove user", fmt.Errorf("find membership: %w", err))
	}
	if m.Banned {
		return apperr.NewPermissionDenied(msgUserBanned)
	}
	return apperr.NewConflict("The membership changed, please try again")
}

// LeaveGroup removes the caller from the group.
func (s *Service) LeaveGroup(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID) error {
	return s.RemoveUserInGroup(ctx, caller, groupID, caller.UserID)
}

// removeGovernor strips target's admin or mod role. The group is re-read
// inside the transaction and the write is conditional on the caller still
// being an admin and, for admins, on another admin remaining.
func (s *Service) removeGovernor(ctx context.Context, caller authz.Caller, groupID, target primitive.ObjectID) error {
	var role grouppolicy.Role
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		g, err := s.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if err := grouppolicy.AuthorizeGovernorRemoval(grouppolicy.EffectiveRole(caller, g), g, target); err != nil {
			return registry.PolicyError(err)
		}

		role = grouppolicy.ResolveRole(g, target)
		if role == grouppolicy.RoleAdmin {
			_, err = s.groups.RemoveAdmin(ctx, groupID, target, registry.ActorGuard(caller))
		} else {
			_, err = s.groups.RemoveMod(ctx, groupID, target, registry.ActorGuard(caller))
		}
		if errors.Is(err, groupstore.ErrStale) {
			return s.staleRemoval(ctx, caller, groupID, target)
		}
		if err != nil {
			return fmt.Errorf("remove %s: %w", role, err)
		}
		return nil
	})
	if err != nil {
		return s.internal("remove governor", err)
	}

	s.audit.GovernorRemoved(ctx, caller.UserID, groupID, target, string(role))
	return nil
}

// staleRemoval explains a conditional removal that matched nothing by
// re-reading the group and asking the policy again.
func (s *Service) staleRemoval(ctx context.Context, caller authz.Caller, groupID, target primitive.ObjectID) error {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := grouppolicy.AuthorizeGovernorRemoval(grouppolicy.EffectiveRole(caller, g), g, target); err != nil {
		return registry.PolicyError(err)
	}
	return apperr.NewConflict("The group changed, please try again")
}

/* ------------------------------- listings -------------------------------- */

// JoinedGroup is a membership row with its group filled in.
type JoinedGroup struct {
	ID        primitive.ObjectID `json:"id"`
	Group     *models.Group      `json:"group"`
	User      primitive.ObjectID `json:"user"`
	Accepted  bool               `json:"accepted"`
	Banned    bool               `json:"banned"`
	CreatedAt time.Time          `json:"created_at"`
}

// GroupWithMembers is a group plus one page of its membership rows.
type GroupWithMembers struct {
	models.Group
	Members paging.Page[models.GroupMember] `json:"members"`
}

// ListJoinedGroups pages through the caller's active memberships, each with
// its group. Rows whose group has vanished carry a nil Group.
func (s *Service) ListJoinedGroups(ctx context.Context, userID primitive.ObjectID, page int) (paging.Page[JoinedGroup], error) {
	rows, err := s.members.ListJoined(ctx, userID, page, s.pageSize)
	if err != nil {
		return paging.Page[JoinedGroup]{}, s.internal("list joined groups", err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows.Results))
	for _, m := range rows.Results {
		ids = append(ids, m.GroupID)
	}
	groups, err := s.groups.GetByIDs(ctx, ids)
	if err != nil {
		return paging.Page[JoinedGroup]{}, s.internal("list joined groups", fmt.Errorf("load groups: %w", err))
	}

	return paging.Map(rows, func(m models.GroupMember) JoinedGroup {
		jg := JoinedGroup{
			ID:        m.ID,
			User:      m.UserID,
			Accepted:  m.Accepted,
			Banned:    m.Banned,
			CreatedAt: m.CreatedAt,
		}
		if g, ok := groups[m.GroupID]; ok {
			jg.Group = &g
		}
		return jg
	}), nil
}

// ListPendingRequests pages through a group's unanswered join requests.
// Admins and mods only.
func (s *Service) ListPendingRequests(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID, page int) (paging.Page[models.GroupMember], error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return paging.Page[models.GroupMember]{}, s.internal("list pending requests", err)
	}
	if !grouppolicy.EffectiveRole(caller, g).CanModerate() {
		return paging.Page[models.GroupMember]{}, apperr.NewPermissionDenied(msgNoPermission)
	}
	res, err := s.members.ListPending(ctx, groupID, page, s.pageSize)
	if err != nil {
		return res, s.internal("list pending requests", err)
	}
	return res, nil
}

// ListMembers returns the group with a page of its active members. Any
// signed in user may view it.
func (s *Service) ListMembers(ctx context.Context, groupID primitive.ObjectID, page int) (GroupWithMembers, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return GroupWithMembers{}, s.internal("list members", err)
	}
	res, err := s.members.ListMembers(ctx, groupID, page, s.pageSize)
	if err != nil {
		return GroupWithMembers{}, s.internal("list members", err)
	}
	return GroupWithMembers{Group: g, Members: res}, nil
}

// ListBanned returns the group with a page of its banned users. Admins and
// mods only.
func (s *Service) ListBanned(ctx context.Context, caller authz.Caller, groupID primitive.ObjectID, page int) (GroupWithMembers, error) {
	g, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return GroupWithMembers{}, s.internal("list banned", err)
	}
	if !grouppolicy.EffectiveRole(caller, g).CanModerate() {
		return GroupWithMembers{}, apperr.NewPermissionDenied(msgNoPermission)
	}
	res, err := s.members.ListBanned(ctx, groupID, page, s.pageSize)
	if err != nil {
		return GroupWithMembers{}, s.internal("list banned", err)
	}
	return GroupWithMembers{Group: g, Members: res}, nil
}

/* ------------------------------- helpers --------------------------------- */

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

func (s *Service) internal(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.log.Error("membership operation failed", zap.String("op", op), zap.Error(err))
	return apperr.NewInternal(err)
}
