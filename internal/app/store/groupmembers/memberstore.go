// internal/app/store/groupmembers/memberstore.go
package memberstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_members")}
}

var (
	// ErrDuplicateMember is returned when the (group, user) unique index
	// rejects an insert.
	ErrDuplicateMember = errors.New("membership already exists for this group and user")
	// ErrStateChanged means a conditional update matched nothing because the
	// row left the expected state (or was deleted) after it was read.
	ErrStateChanged = errors.New("membership changed concurrently")
)

// pendingFilter matches a join request that is still awaiting a decision.
func pendingFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "accepted": false, "banned": false}
}

// GetByID returns mongo.ErrNoDocuments when the row does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.GroupMember, error) {
	var m models.GroupMember
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// Find returns the (group, user) row, or mongo.ErrNoDocuments.
func (s *Store) Find(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMember, error) {
	var m models.GroupMember
	if err := s.c.FindOne(ctx, bson.M{"group": groupID, "user": userID}).Decode(&m); err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// Create inserts a new row. Lost races on the unique index surface as
// ErrDuplicateMember.
func (s *Store) Create(ctx context.Context, groupID, userID primitive.ObjectID, accepted bool) (models.GroupMember, error) {
	m := models.GroupMember{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Accepted:  accepted,
		Banned:    false,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GroupMember{}, ErrDuplicateMember
		}
		return models.GroupMember{}, err
	}
	return m, nil
}

// Accept promotes a pending request to a member. The update only matches while
// the row is still pending and unbanned.
func (s *Store) Accept(ctx context.Context, id primitive.ObjectID) (models.GroupMember, error) {
	var m models.GroupMember
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, pendingFilter(id), bson.M{"$set": bson.M{"accepted": true}}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMember{}, ErrStateChanged
	}
	if err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// DeletePending removes a pending request. It refuses rows that were
// accepted or banned after they were read.
func (s *Store) DeletePending(ctx context.Context, id primitive.ObjectID) (models.GroupMember, error) {
	var m models.GroupMember
	err := s.c.FindOneAndDelete(ctx, pendingFilter(id)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMember{}, ErrStateChanged
	}
	if err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// SetBanned flips the banned flag. The update is conditional on the flag
// still holding its previous value.
func (s *Store) SetBanned(ctx context.Context, id primitive.ObjectID, banned bool) (models.GroupMember, error) {
	var m models.GroupMember
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "banned": !banned}
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"banned": banned}}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.GroupMember{}, ErrStateChanged
	}
	if err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// RemoveUnbanned deletes the (group, user) row and returns it, or
// mongo.ErrNoDocuments. A banned row is never matched: the ban must outlive
// leave and kick so the user cannot rejoin.
func (s *Store) RemoveUnbanned(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMember, error) {
	var m models.GroupMember
	filter := bson.M{"group": groupID, "user": userID, "banned": false}
	if err := s.c.FindOneAndDelete(ctx, filter).Decode(&m); err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// DeleteByGroup removes all rows for a group.
// Returns the number of documents deleted.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

/* ------------------------------- listings -------------------------------- */

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// ListJoined pages through groups userID is an active member of.
func (s *Store) ListJoined(ctx context.Context, userID primitive.ObjectID, page, size int) (paging.Page[models.GroupMember], error) {
	filter := bson.M{"user": userID, "accepted": true, "banned": false}
	return paging.Paginate[models.GroupMember](ctx, s.c, filter, newestFirst, page, size)
}

// ListPending pages through unanswered join requests for a group.
func (s *Store) ListPending(ctx context.Context, groupID primitive.ObjectID, page, size int) (paging.Page[models.GroupMember], error) {
	filter := bson.M{"group": groupID, "accepted": false, "banned": false}
	return paging.Paginate[models.GroupMember](ctx, s.c, filter, newestFirst, page, size)
}

// ListMembers pages through active members of a group.
func (s *Store) ListMembers(ctx context.Context, groupID primitive.ObjectID, page, size int) (paging.Page[models.GroupMember], error) {
	filter := bson.M{"group": groupID, "accepted": true, "banned": false}
	return paging.Paginate[models.GroupMember](ctx, s.c, filter, newestFirst, page, size)
}

// ListBanned pages through banned users of a group.
func (s *Store) ListBanned(ctx context.Context, groupID primitive.ObjectID, page, size int) (paging.Page[models.GroupMember], error) {
	filter := bson.M{"group": groupID, "banned": true}
	return paging.Paginate[models.GroupMember](ctx, s.c, filter, newestFirst, page, size)
}

// GroupIDs returns every distinct group id referenced by a row.
func (s *Store) GroupIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	raw, err := s.c.Distinct(ctx, "group", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, oid)
		}
	}
	return ids, nil
}
