// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureGroupMembers(ctx, db); err != nil {
		problems = append(problems, "group_members: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(b *bool) bool { return b != nil && *b }

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

// listBySig returns the collection's indexes keyed by key signature.
func listBySig(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		// Collection may not exist yet; CreateOne will create it.
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

type desiredIndex struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = boolOf(m.Options.Unique)
	}
	return d
}

// create builds d and turns a duplicate-key failure on a unique index into an
// actionable message.
func create(ctx context.Context, coll *mongo.Collection, d desiredIndex) error {
	_, err := coll.Indexes().CreateOne(ctx, d.model)
	if err == nil {
		return nil
	}
	if d.unique && wafflemongo.IsDup(err) {
		helper := ""
		if coll.Name() == "group_members" {
			helper = " (duplicate memberships exist; find them with " +
				`db.group_members.aggregate([{ $group: { _id: { g: "$group", u: "$user" }, n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])` + ")"
		}
		return fmt.Errorf("cannot create unique index, duplicates present%s", helper)
	}
	return err
}

// replace drops ex and creates d in its place.
func replace(ctx context.Context, coll *mongo.Collection, ex existingIndex, d desiredIndex) error {
	if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
		return fmt.Errorf("drop %s failed: %w", ex.Name, err)
	}
	return create(ctx, coll, d)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		d := describe(m)
		start := time.Now()
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique),
		}
		zap.L().Info("ensuring index", fields...)

		existing := listBySig(ctx, coll)
		ex, found := existing[d.sig]

		var err error
		action := "index ensured"
		switch {
		case found && boolOf(ex.Unique) == d.unique && (d.name == "" || ex.Name == d.name):
			action = "reusing existing index"
		case found && boolOf(ex.Unique) == d.unique:
			action = "index renamed"
			err = replace(ctx, coll, ex, d)
		case found:
			// Options mismatch (e.g. upgrading to unique).
			action = "index dropped and recreated"
			err = replace(ctx, coll, ex, d)
		default:
			err = create(ctx, coll, d)
			if isOptionsConflictErr(err) {
				// Same keys appeared under another name between List and CreateOne.
				if match, ok := listBySig(ctx, coll)[d.sig]; ok {
					action = "index dropped and recreated (post-conflict)"
					err = replace(ctx, coll, match, d)
				}
			}
		}

		fields = append(fields, zap.String("took", time.Since(start).String()))
		if err != nil {
			zap.L().Warn("index ensure failed", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
			continue
		}
		zap.L().Info(action, fields...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Managed-groups listing: {$or: [{admin: u}, {mod: u}]} uses one index per branch.
		{
			Keys:    bson.D{{Key: "admin", Value: 1}},
			Options: options.Index().SetName("idx_groups_admin"),
		},
		{
			Keys:    bson.D{{Key: "mod", Value: 1}},
			Options: options.Index().SetName("idx_groups_mod"),
		},
	})
}

func ensureGroupMembers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("group_members")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One row per (group, user). Concurrent joins race on this index.
		{
			Keys:    bson.D{{Key: "group", Value: 1}, {Key: "user", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_gm_group_user"),
		},
		// Joined-groups listing for a user, newest first.
		{
			Keys: bson.D{
				{Key: "user", Value: 1},
				{Key: "group", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_gm_user_group_created"),
		},
		// Pending/members/banned listings for a group.
		{
			Keys: bson.D{
				{Key: "group", Value: 1},
				{Key: "accepted", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_gm_group_accepted_created"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_group_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_eventtype_timestamp"),
		},
	})
}
