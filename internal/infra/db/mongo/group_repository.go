package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/group"
	domainuser "artisanchat/internal/domain/user"
)

type GroupRepository struct {
	col *mongo.Collection
}

func NewGroupRepository(db *mongo.Database) *GroupRepository {
	return &GroupRepository{col: db.Collection("agg_group")}
}

func (r *GroupRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members.user_id", Value: 1}},
	})
	return err
}

func (r *GroupRepository) ByID(ctx context.Context, id group.ID) (*group.Group, error) {
	var doc groupDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, group.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *GroupRepository) ByMember(ctx context.Context, member domainuser.ID) ([]*group.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"members.user_id": string(member)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*group.Group
	for cursor.Next(ctx) {
		var doc groupDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *GroupRepository) Save(ctx context.Context, g *group.Group) error {
	if g == nil || g.ID == "" {
		return group.ErrIDRequired
	}
	doc := newGroupDocument(g)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *GroupRepository) Delete(ctx context.Context, id group.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return group.ErrNotFound
	}
	return nil
}

type groupDocument struct {
	ID             string           `bson:"_id"`
	Name           string           `bson:"name"`
	Description    string           `bson:"description,omitempty"`
	Avatar         string           `bson:"avatar,omitempty"`
	Members        []memberDocument `bson:"members"`
	ConversationID string           `bson:"conversation_id,omitempty"`
	IsPrivate      bool             `bson:"is_private"`
	CreatedAt      int64            `bson:"created_at"`
	UpdatedAt      int64            `bson:"updated_at"`
}

type memberDocument struct {
	UserID   string `bson:"user_id"`
	Role     string `bson:"role"`
	JoinedAt int64  `bson:"joined_at"`
}

func newGroupDocument(g *group.Group) groupDocument {
	doc := groupDocument{
		ID:             string(g.ID),
		Name:           g.Name,
		Description:    g.Description,
		Avatar:         g.Avatar,
		Members:        make([]memberDocument, 0, len(g.Members)),
		ConversationID: string(g.ConversationID),
		IsPrivate:      g.IsPrivate,
		CreatedAt:      g.CreatedAt.UnixMilli(),
		UpdatedAt:      g.UpdatedAt.UnixMilli(),
	}
	for _, member := range g.Members {
		doc.Members = append(doc.Members, memberDocument{
			UserID:   string(member.UserID),
			Role:     string(member.Role),
			JoinedAt: member.JoinedAt.UnixMilli(),
		})
	}
	return doc
}

func (d groupDocument) toAggregate() *group.Group {
	agg := &group.Group{
		ID:             group.ID(d.ID),
		Name:           d.Name,
		Description:    d.Description,
		Avatar:         d.Avatar,
		Members:        make(map[domainuser.ID]*group.Member, len(d.Members)),
		ConversationID: chat.ConversationID(d.ConversationID),
		IsPrivate:      d.IsPrivate,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
	for _, member := range d.Members {
		agg.Members[domainuser.ID(member.UserID)] = &group.Member{
			UserID:   domainuser.ID(member.UserID),
			Role:     group.Role(member.Role),
			JoinedAt: timestampToTime(member.JoinedAt),
		}
	}
	return agg
}

var _ group.Repository = (*GroupRepository)(nil)
