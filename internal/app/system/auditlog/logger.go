// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Mode controls where group and membership events go.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Mode string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	if config.Mode == "" {
		config.Mode = "all"
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// Origin describes where a request came from. The HTTP layer attaches it to
// the context so services can log without seeing the request.
type Origin struct {
	IP        string
	RequestID string
}

type originKey struct{}

// WithOrigin returns ctx carrying o.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

func originFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.GroupID != nil {
		fields = append(fields, zap.String("group_id", event.GroupID.Hex()))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Store failures are logged, never returned: auditing must not fail the
// operation being audited.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.config.Mode
	if setting == "off" {
		return
	}

	o := originFrom(ctx)
	if event.IP == "" {
		event.IP = o.IP
	}
	if event.RequestID == "" {
		event.RequestID = o.RequestID
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) record(ctx context.Context, category, eventType string, actor *primitive.ObjectID, groupID primitive.ObjectID, user *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  category,
		EventType: eventType,
		GroupID:   &groupID,
		ActorID:   actor,
		UserID:    user,
		Success:   true,
		Details:   details,
	})
}

// --- Group Events ---

// GroupCreated logs a new group; the creator becomes its first admin.
func (l *Logger) GroupCreated(ctx context.Context, actorID, groupID primitive.ObjectID, name string) {
	l.record(ctx, audit.CategoryGroup, audit.EventGroupCreated, &actorID, groupID, nil, map[string]string{
		"name": name,
	})
}

// GroupUpdated logs an attribute update.
func (l *Logger) GroupUpdated(ctx context.Context, actorID, groupID primitive.ObjectID, fieldsChanged string) {
	l.record(ctx, audit.CategoryGroup, audit.EventGroupUpdated, &actorID, groupID, nil, map[string]string{
		"fields_changed": fieldsChanged,
	})
}

// GroupDeleted logs a group delete and its membership cascade.
func (l *Logger) GroupDeleted(ctx context.Context, actorID, groupID primitive.ObjectID, membersRemoved int64) {
	l.record(ctx, audit.CategoryGroup, audit.EventGroupDeleted, &actorID, groupID, nil, map[string]string{
		"members_removed": strconv.FormatInt(membersRemoved, 10),
	})
}

// --- Membership Events ---

// JoinRequested logs a pending join request.
func (l *Logger) JoinRequested(ctx context.Context, groupID, userID primitive.ObjectID) {
	l.record(ctx, audit.CategoryMembership, audit.EventJoinRequested, &userID, groupID, &userID, nil)
}

// MemberJoined logs a direct join to an open group.
func (l *Logger) MemberJoined(ctx context.Context, groupID, userID primitive.ObjectID) {
	l.record(ctx, audit.CategoryMembership, audit.EventMemberJoined, &userID, groupID, &userID, nil)
}

// JoinAccepted logs approval of a join request.
func (l *Logger) JoinAccepted(ctx context.Context, actorID, groupID, userID primitive.ObjectID) {
	l.record(ctx, audit.CategoryMembership, audit.EventJoinAccepted, &actorID, groupID, &userID, nil)
}

// JoinRejected logs rejection of a join request.
func (l *Logger) JoinRejected(ctx context.Context, actorID, groupID, userID primitive.ObjectID) {
	l.record(ctx, audit.CategoryMembership, audit.EventJoinRejected, &actorID, groupID, &userID, nil)
}

// MemberBanned logs a ban.
func (l *Logger) MemberBanned(ctx context.Context, actorID, groupID, userID primitive.ObjectID) {
	l.record(ctx, audit.CategoryMembership, audit.EventMemberBanned, &actorID, groupID, &userID, nil)
}

// MemberUnbanned logs an unban.
func (l *Logger) MemberUnbanned(ctx context.Context, actorID, groupID, userID primitive.ObjectID) {
	l.record(ctx, audit.CategoryMembership, audit.EventMemberUnbanned, &actorID, groupID, &userID, nil)
}

// MemberRemoved logs a leave (actor == user) or a kick.
func (l *Logger) MemberRemoved(ctx context.Context, actorID, groupID, userID primitive.ObjectID) {
	kind := "kick"
	if actorID == userID {
		kind = "leave"
	}
	l.record(ctx, audit.CategoryMembership, audit.EventMemberRemoved, &actorID, groupID, &userID, map[string]string{
		"kind": kind,
	})
}

// OrphanRepaired logs the cleanup of membership rows whose group no longer exists.
func (l *Logger) OrphanRepaired(ctx context.Context, groupID primitive.ObjectID, rowsDeleted int64) {
	l.record(ctx, audit.CategoryMembership, audit.EventOrphanRepaired, nil, groupID, nil, map[string]string{
		"rows_deleted": strconv.FormatInt(rowsDeleted, 10),
	})
}

// --- Role Events ---

// UserAppointed logs an admin or mod appointment.
func (l *Logger) UserAppointed(ctx context.Context, actorID, groupID, userID primitive.ObjectID, role string) {
	l.record(ctx, audit.CategoryRole, audit.EventUserAppointed, &actorID, groupID, &userID, map[string]string{
		"role": role,
	})
}

// GovernorRemoved logs an admin or mod losing that role.
func (l *Logger) GovernorRemoved(ctx context.Context, actorID, groupID, userID primitive.ObjectID, role string) {
	l.record(ctx, audit.CategoryRole, audit.EventGovernorRemoved, &actorID, groupID, &userID, map[string]string{
		"role": role,
	})
}
