package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"artisanchat/internal/domain/portfolio"
	domainuser "artisanchat/internal/domain/user"
)

type PortfolioRepository struct {
	col *mongo.Collection
}

func NewPortfolioRepository(db *mongo.Database) *PortfolioRepository {
	return &PortfolioRepository{col: db.Collection("agg_portfolio")}
}

func (r *PortfolioRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "like_count", Value: -1}, {Key: "views", Value: -1}}},
	})
	return err
}

func (r *PortfolioRepository) ByID(ctx context.Context, id portfolio.ID) (*portfolio.Item, error) {
	var doc portfolioDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, portfolio.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PortfolioRepository) ByOwner(ctx context.Context, owner domainuser.ID, limit, offset int) ([]*portfolio.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"owner": string(owner)}, opts)
}

func (r *PortfolioRepository) Popular(ctx context.Context, limit int) ([]*portfolio.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "like_count", Value: -1}, {Key: "views", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{}, opts)
}

func (r *PortfolioRepository) Save(ctx context.Context, item *portfolio.Item) error {
	if item == nil || item.ID == "" {
		return portfolio.ErrIDRequired
	}
	doc := newPortfolioDocument(item)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *PortfolioRepository) Delete(ctx context.Context, id portfolio.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return portfolio.ErrNotFound
	}
	return nil
}

func (r *PortfolioRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*portfolio.Item, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*portfolio.Item
	for cursor.Next(ctx) {
		var doc portfolioDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type portfolioDocument struct {
	ID           string            `bson:"_id"`
	Owner        string            `bson:"owner"`
	Title        string            `bson:"title"`
	Description  string            `bson:"description,omitempty"`
	FileKey      string            `bson:"file_key"`
	FileName     string            `bson:"file_name,omitempty"`
	FileSize     int64             `bson:"file_size,omitempty"`
	ThumbnailKey string            `bson:"thumbnail_key,omitempty"`
	Category     string            `bson:"category"`
	Tags         []string          `bson:"tags,omitempty"`
	Likes        map[string]int64  `bson:"likes"`
	LikeCount    int               `bson:"like_count"`
	Comments     []commentDocument `bson:"comments,omitempty"`
	Views        int64             `bson:"views"`
	CreatedAt    int64             `bson:"created_at"`
	UpdatedAt    int64             `bson:"updated_at"`
}

type commentDocument struct {
	ID        string `bson:"_id"`
	UserID    string `bson:"user_id"`
	Content   string `bson:"content"`
	CreatedAt int64  `bson:"created_at"`
}

func newPortfolioDocument(item *portfolio.Item) portfolioDocument {
	doc := portfolioDocument{
		ID:           string(item.ID),
		Owner:        string(item.Owner),
		Title:        item.Title,
		Description:  item.Description,
		FileKey:      item.FileKey,
		FileName:     item.FileName,
		FileSize:     item.FileSize,
		ThumbnailKey: item.ThumbnailKey,
		Category:     string(item.Category),
		Tags:         append([]string(nil), item.Tags...),
		Likes:        make(map[string]int64, len(item.Likes)),
		LikeCount:    len(item.Likes),
		Views:        item.Views,
		CreatedAt:    item.CreatedAt.UnixMilli(),
		UpdatedAt:    item.UpdatedAt.UnixMilli(),
	}
	for id, at := range item.Likes {
		doc.Likes[string(id)] = at.UnixMilli()
	}
	for _, comment := range item.Comments {
		doc.Comments = append(doc.Comments, commentDocument{
			ID:        comment.ID,
			UserID:    string(comment.UserID),
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt.UnixMilli(),
		})
	}
	return doc
}

func (d portfolioDocument) toAggregate() *portfolio.Item {
	item := &portfolio.Item{
		ID:           portfolio.ID(d.ID),
		Owner:        domainuser.ID(d.Owner),
		Title:        d.Title,
		Description:  d.Description,
		FileKey:      d.FileKey,
		FileName:     d.FileName,
		FileSize:     d.FileSize,
		ThumbnailKey: d.ThumbnailKey,
		Category:     portfolio.Category(d.Category),
		Tags:         append([]string(nil), d.Tags...),
		Likes:        make(map[domainuser.ID]time.Time, len(d.Likes)),
		Views:        d.Views,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
	}
	for id, at := range d.Likes {
		item.Likes[domainuser.ID(id)] = timestampToTime(at)
	}
	for _, comment := range d.Comments {
		item.Comments = append(item.Comments, portfolio.Comment{
			ID:        comment.ID,
			UserID:    domainuser.ID(comment.UserID),
			Content:   comment.Content,
			CreatedAt: timestampToTime(comment.CreatedAt),
		})
	}
	return item
}

var _ portfolio.Repository = (*PortfolioRepository)(nil)
