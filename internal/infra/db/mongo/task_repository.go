package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/task"
	domainuser "artisanchat/internal/domain/user"
)

type TaskRepository struct {
	col *mongo.Collection
}

func NewTaskRepository(db *mongo.Database) *TaskRepository {
	return &TaskRepository{col: db.Collection("agg_task")}
}

func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "due_date", Value: 1}}},
	})
	return err
}

func (r *TaskRepository) ByID(ctx context.Context, id task.ID) (*task.Task, error) {
	var doc taskDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, task.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *TaskRepository) ByGroup(ctx context.Context, groupID group.ID, limit, offset int) ([]*task.Task, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"group_id": string(groupID)}, opts)
}

func (r *TaskRepository) Overdue(ctx context.Context, groupID group.ID, now time.Time) ([]*task.Task, error) {
	filter := bson.M{
		"group_id": string(groupID),
		"status":   bson.M{"$nin": bson.A{string(task.StatusCompleted), string(task.StatusCancelled)}},
		"due_date": bson.M{"$gt": 0, "$lt": now.UnixMilli()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *TaskRepository) DueSoon(ctx context.Context, groupID group.ID, now time.Time, window time.Duration) ([]*task.Task, error) {
	filter := bson.M{
		"group_id": string(groupID),
		"status":   bson.M{"$nin": bson.A{string(task.StatusCompleted), string(task.StatusCancelled)}},
		"due_date": bson.M{"$gt": now.UnixMilli(), "$lte": now.Add(window).UnixMilli()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *TaskRepository) Save(ctx context.Context, t *task.Task) error {
	if t == nil || t.ID == "" {
		return task.ErrIDRequired
	}
	doc := newTaskDocument(t)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *TaskRepository) Delete(ctx context.Context, id task.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*task.Task, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*task.Task
	for cursor.Next(ctx) {
		var doc taskDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type taskDocument struct {
	ID          string            `bson:"_id"`
	GroupID     string            `bson:"group_id"`
	Title       string            `bson:"title"`
	Description string            `bson:"description,omitempty"`
	CreatedBy   string            `bson:"created_by"`
	AssignedTo  string            `bson:"assigned_to,omitempty"`
	Status      string            `bson:"status"`
	Priority    string            `bson:"priority"`
	Tags        []string          `bson:"tags,omitempty"`
	DueDate     int64             `bson:"due_date,omitempty"`
	CompletedAt int64             `bson:"completed_at,omitempty"`
	Comments    []commentDocument `bson:"comments,omitempty"`
	CreatedAt   int64             `bson:"created_at"`
	UpdatedAt   int64             `bson:"updated_at"`
}

func newTaskDocument(t *task.Task) taskDocument {
	doc := taskDocument{
		ID:          string(t.ID),
		GroupID:     string(t.GroupID),
		Title:       t.Title,
		Description: t.Description,
		CreatedBy:   string(t.CreatedBy),
		AssignedTo:  string(t.AssignedTo),
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Tags:        append([]string(nil), t.Tags...),
		CreatedAt:   t.CreatedAt.UnixMilli(),
		UpdatedAt:   t.UpdatedAt.UnixMilli(),
	}
	if !t.DueDate.IsZero() {
		doc.DueDate = t.DueDate.UnixMilli()
	}
	if !t.CompletedAt.IsZero() {
		doc.CompletedAt = t.CompletedAt.UnixMilli()
	}
	for _, comment := range t.Comments {
		doc.Comments = append(doc.Comments, commentDocument{
			ID:        comment.ID,
			UserID:    string(comment.UserID),
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt.UnixMilli(),
		})
	}
	return doc
}

func (d taskDocument) toAggregate() *task.Task {
	agg := &task.Task{
		ID:          task.ID(d.ID),
		GroupID:     group.ID(d.GroupID),
		Title:       d.Title,
		Description: d.Description,
		CreatedBy:   domainuser.ID(d.CreatedBy),
		AssignedTo:  domainuser.ID(d.AssignedTo),
		Status:      task.Status(d.Status),
		Priority:    task.Priority(d.Priority),
		Tags:        append([]string(nil), d.Tags...),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
	if d.DueDate != 0 {
		agg.DueDate = timestampToTime(d.DueDate)
	}
	if d.CompletedAt != 0 {
		agg.CompletedAt = timestampToTime(d.CompletedAt)
	}
	for _, comment := range d.Comments {
		agg.Comments = append(agg.Comments, task.Comment{
			ID:        comment.ID,
			UserID:    domainuser.ID(comment.UserID),
			Content:   comment.Content,
			CreatedAt: timestampToTime(comment.CreatedAt),
		})
	}
	return agg
}

var _ task.Repository = (*TaskRepository)(nil)
