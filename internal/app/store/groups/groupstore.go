// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrStale means a conditional admin/mod update matched nothing: the group
// was deleted or its admin/mod sets changed since they were read.
var ErrStale = errors.New("group changed concurrently")

// ErrNoAdmin rejects creating a group with an empty admin set.
var ErrNoAdmin = errors.New("group needs at least one admin")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// GetByID returns mongo.ErrNoDocuments when the group does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts g with a fresh ID and timestamps.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	if len(g.Admin) == 0 {
		return models.Group{}, ErrNoAdmin
	}
	if g.Mod == nil {
		g.Mod = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Patch holds optional attribute changes; nil fields are left untouched.
type Patch struct {
	Name               *string
	Avatar             *string
	Cover              *string
	Description        *string
	Location           *string
	Privacy            *models.Privacy
	NeedApprovedToJoin *bool
}

func (p Patch) set() bson.M {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Avatar != nil {
		set["avatar"] = *p.Avatar
	}
	if p.Cover != nil {
		set["cover"] = *p.Cover
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Privacy != nil {
		set["privacy"] = *p.Privacy
	}
	if p.NeedApprovedToJoin != nil {
		set["need_approved_to_join"] = *p.NeedApprovedToJoin
	}
	return set
}

// Update applies p and returns the updated group, or mongo.ErrNoDocuments.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (models.Group, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": p.set()})
}

// Delete removes a group by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

/* --------------------------- admin / mod sets ---------------------------- */

// guard restricts a filter to groups where actor is still an admin. A nil
// actor (global override) skips the check.
func guard(filter bson.D, actor *primitive.ObjectID) bson.D {
	if actor != nil {
		filter = append(filter, bson.E{Key: "admin", Value: *actor})
	}
	return filter
}

// AddAdmin adds userID to the admin set and pulls it from mod in the same
// update. Returns ErrStale when the group is gone or actor is no longer an
// admin.
func (s *Store) AddAdmin(ctx context.Context, id, userID primitive.ObjectID, actor *primitive.ObjectID) (models.Group, error) {
	filter := guard(bson.D{{Key: "_id", Value: id}}, actor)
	update := bson.M{
		"$addToSet": bson.M{"admin": userID},
		"$pull":     bson.M{"mod": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	g, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrStale
	}
	return g, err
}

// AddMod adds userID to the mod set unless it is already an admin.
func (s *Store) AddMod(ctx context.Context, id, userID primitive.ObjectID, actor *primitive.ObjectID) (models.Group, error) {
	filter := guard(bson.D{
		{Key: "_id", Value: id},
		{Key: "$nor", Value: bson.A{bson.M{"admin": userID}}},
	}, actor)
	update := bson.M{
		"$addToSet": bson.M{"mod": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	g, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrStale
	}
	return g, err
}

// RemoveAdmin pulls userID from the admin set only while at least one other
// admin remains ("admin.1" exists) and actor is still an admin.
func (s *Store) RemoveAdmin(ctx context.Context, id, userID primitive.ObjectID, actor *primitive.ObjectID) (models.Group, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "admin.1", Value: bson.M{"$exists": true}},
	}
	if actor != nil {
		filter = append(filter, bson.E{Key: "admin", Value: bson.M{"$all": bson.A{userID, *actor}}})
	} else {
		filter = append(filter, bson.E{Key: "admin", Value: userID})
	}
	update := bson.M{
		"$pull": bson.M{"admin": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	g, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrStale
	}
	return g, err
}

// RemoveMod pulls userID from the mod set while actor is still an admin.
func (s *Store) RemoveMod(ctx context.Context, id, userID primitive.ObjectID, actor *primitive.ObjectID) (models.Group, error) {
	filter := guard(bson.D{
		{Key: "_id", Value: id},
		{Key: "mod", Value: userID},
	}, actor)
	update := bson.M{
		"$pull": bson.M{"mod": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	g, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrStale
	}
	return g, err
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update any) (models.Group, error) {
	var g models.Group
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

/* ------------------------------- listings -------------------------------- */

// ListManagedBy pages through groups where userID is an admin or mod,
// most recently created first.
func (s *Store) ListManagedBy(ctx context.Context, userID primitive.ObjectID, page, size int) (paging.Page[models.Group], error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"admin": userID},
		bson.M{"mod": userID},
	}}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	return paging.Paginate[models.Group](ctx, s.c, filter, sort, page, size)
}

// GetByIDs returns the groups that exist among ids, keyed by ID.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Group, error) {
	out := make(map[primitive.ObjectID]models.Group, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var g models.Group
		if err := cur.Decode(&g); err != nil {
			return nil, err
		}
		out[g.ID] = g
	}
	return out, cur.Err()
}
