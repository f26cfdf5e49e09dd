package mongo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"artisanchat/internal/domain/chat"
	domainuser "artisanchat/internal/domain/user"
)

// ConversationStore persists conversations as single documents with an
// embedded message log. Appends and seen updates are single atomic writes;
// a private pair key carries a unique index so first contact races resolve
// to one document.
type ConversationStore struct {
	col *mongo.Collection
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{col: db.Collection("agg_conversation")}
}

func (s *ConversationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pair", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"kind": string(chat.Private)}),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}

func (s *ConversationStore) Get(ctx context.Context, id chat.ConversationID) (*chat.Conversation, error) {
	var doc conversationDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (s *ConversationStore) FindPrivateBetween(ctx context.Context, a, b domainuser.ID) (*chat.Conversation, error) {
	var doc conversationDocument
	err := s.col.FindOne(ctx, bson.M{"pair": pairKey(a, b)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (s *ConversationStore) ListByParticipant(ctx context.Context, id domainuser.ID, limit, offset int) ([]*chat.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.col.Find(ctx, bson.M{"participants": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*chat.Conversation
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (s *ConversationStore) Create(ctx context.Context, conversation *chat.Conversation) error {
	doc := newConversationDocument(conversation)
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return chat.ErrConversationExists
		}
		return err
	}
	return nil
}

func (s *ConversationStore) AppendMessage(ctx context.Context, id chat.ConversationID, msg *chat.Message) (*chat.Message, error) {
	doc := newMessageDocument(msg)
	update := bson.M{
		"$push": bson.M{"messages": doc},
		"$set": bson.M{
			"summary": summaryDocument{
				Content: msg.Content,
				Sender:  string(msg.Sender),
				Kind:    string(msg.Kind),
				At:      msg.CreatedAt.UnixMilli(),
			},
			"updated_at": msg.CreatedAt.UnixMilli(),
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, chat.ErrNotFound
	}
	return msg.Clone(), nil
}

func (s *ConversationStore) MarkSeen(ctx context.Context, id chat.ConversationID, messageID chat.MessageID, identity domainuser.ID, at time.Time) (bool, error) {
	seenField := "messages.$.seen_by." + string(identity)
	filter := bson.M{
		"_id":          string(id),
		"messages._id": string(messageID),
		seenField:      bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{seenField: at.UnixMilli()}}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	// Nothing changed: classify missing conversation, missing message or an
	// already-seen message.
	var doc conversationDocument
	err = s.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, chat.ErrNotFound
		}
		return false, err
	}
	for _, msg := range doc.Messages {
		if msg.ID == string(messageID) {
			return false, nil
		}
	}
	return false, chat.ErrMessageNotFound
}

func (s *ConversationStore) Messages(ctx context.Context, id chat.ConversationID, before chat.MessageID, limit int) ([]*chat.Message, error) {
	var doc conversationDocument
	opts := options.FindOne().SetProjection(bson.M{"messages": 1})
	if err := s.col.FindOne(ctx, bson.M{"_id": string(id)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	end := len(doc.Messages)
	if before != "" {
		end = -1
		for i, msg := range doc.Messages {
			if msg.ID == string(before) {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, chat.ErrMessageNotFound
		}
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	out := make([]*chat.Message, 0, end-start)
	for _, msg := range doc.Messages[start:end] {
		out = append(out, msg.toAggregate())
	}
	return out, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id chat.ConversationID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// Update reloads, applies fn and writes back with an optimistic version
// filter. Used for membership changes where the whole aggregate is involved.
func (s *ConversationStore) Update(ctx context.Context, id chat.ConversationID, fn func(*chat.Conversation) error) (*chat.Conversation, error) {
	for {
		conversation, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(conversation); err != nil {
			return nil, err
		}
		conversation.ClearEvents()

		doc := newConversationDocument(conversation)
		filter := bson.M{"_id": doc.ID, "version": conversation.Version}
		doc.Version = conversation.Version + 1
		res, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount > 0 {
			conversation.Version = doc.Version
			return conversation, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

func pairKey(a, b domainuser.ID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

type conversationDocument struct {
	ID           string            `bson:"_id"`
	Kind         string            `bson:"kind"`
	Pair         string            `bson:"pair,omitempty"`
	Name         string            `bson:"name,omitempty"`
	Description  string            `bson:"description,omitempty"`
	Avatar       string            `bson:"avatar,omitempty"`
	Participants []string          `bson:"participants"`
	Admins       []string          `bson:"admins,omitempty"`
	Messages     []messageDocument `bson:"messages"`
	Summary      *summaryDocument  `bson:"summary,omitempty"`
	CreatedAt    int64             `bson:"created_at"`
	UpdatedAt    int64             `bson:"updated_at"`
	Version      int64             `bson:"version"`
}

type summaryDocument struct {
	Content string `bson:"content"`
	Sender  string `bson:"sender"`
	Kind    string `bson:"kind"`
	At      int64  `bson:"at"`
}

type messageDocument struct {
	ID        string           `bson:"_id"`
	Sender    string           `bson:"sender"`
	Content   string           `bson:"content,omitempty"`
	Kind      string           `bson:"kind"`
	FileRef   *fileRefDocument `bson:"file_ref,omitempty"`
	SeenBy    map[string]int64 `bson:"seen_by"`
	Edited    bool             `bson:"edited,omitempty"`
	EditedAt  int64            `bson:"edited_at,omitempty"`
	CreatedAt int64            `bson:"created_at"`
}

type fileRefDocument struct {
	Key  string `bson:"key"`
	Name string `bson:"name,omitempty"`
	Size int64  `bson:"size,omitempty"`
}

func newConversationDocument(c *chat.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:           string(c.ID),
		Kind:         string(c.Kind),
		Name:         c.Name,
		Description:  c.Description,
		Avatar:       c.Avatar,
		Participants: idSetToSlice(c.Participants),
		Admins:       idSetToSlice(c.Admins),
		Messages:     make([]messageDocument, 0, len(c.Messages)),
		CreatedAt:    c.CreatedAt.UnixMilli(),
		UpdatedAt:    c.UpdatedAt.UnixMilli(),
		Version:      c.Version,
	}
	if c.Kind == chat.Private {
		ids := doc.Participants
		if len(ids) == 2 {
			doc.Pair = pairKey(domainuser.ID(ids[0]), domainuser.ID(ids[1]))
		}
	}
	for _, msg := range c.Messages {
		doc.Messages = append(doc.Messages, newMessageDocument(msg))
	}
	if c.Summary != nil {
		doc.Summary = &summaryDocument{
			Content: c.Summary.Content,
			Sender:  string(c.Summary.Sender),
			Kind:    string(c.Summary.Kind),
			At:      c.Summary.At.UnixMilli(),
		}
	}
	return doc
}

func (d conversationDocument) toAggregate() *chat.Conversation {
	agg := &chat.Conversation{
		ID:           chat.ConversationID(d.ID),
		Kind:         chat.Kind(d.Kind),
		Name:         d.Name,
		Description:  d.Description,
		Avatar:       d.Avatar,
		Participants: sliceToIDSet(d.Participants),
		Admins:       sliceToIDSet(d.Admins),
		Messages:     make([]*chat.Message, 0, len(d.Messages)),
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
	for _, msg := range d.Messages {
		agg.Messages = append(agg.Messages, msg.toAggregate())
	}
	if d.Summary != nil {
		agg.Summary = &chat.Summary{
			Content: d.Summary.Content,
			Sender:  domainuser.ID(d.Summary.Sender),
			Kind:    chat.MessageKind(d.Summary.Kind),
			At:      timestampToTime(d.Summary.At),
		}
	}
	return agg
}

func newMessageDocument(m *chat.Message) messageDocument {
	doc := messageDocument{
		ID:        string(m.ID),
		Sender:    string(m.Sender),
		Content:   m.Content,
		Kind:      string(m.Kind),
		SeenBy:    make(map[string]int64, len(m.SeenBy)),
		Edited:    m.Edited,
		CreatedAt: m.CreatedAt.UnixMilli(),
	}
	if !m.EditedAt.IsZero() {
		doc.EditedAt = m.EditedAt.UnixMilli()
	}
	if m.FileRef != nil {
		doc.FileRef = &fileRefDocument{Key: m.FileRef.Key, Name: m.FileRef.Name, Size: m.FileRef.Size}
	}
	for id, at := range m.SeenBy {
		doc.SeenBy[string(id)] = at.UnixMilli()
	}
	return doc
}

func (d messageDocument) toAggregate() *chat.Message {
	msg := &chat.Message{
		ID:        chat.MessageID(d.ID),
		Sender:    domainuser.ID(d.Sender),
		Content:   d.Content,
		Kind:      chat.MessageKind(d.Kind),
		SeenBy:    make(map[domainuser.ID]time.Time, len(d.SeenBy)),
		Edited:    d.Edited,
		CreatedAt: timestampToTime(d.CreatedAt),
	}
	if d.EditedAt != 0 {
		msg.EditedAt = timestampToTime(d.EditedAt)
	}
	if d.FileRef != nil {
		msg.FileRef = &chat.FileRef{Key: d.FileRef.Key, Name: d.FileRef.Name, Size: d.FileRef.Size}
	}
	for id, at := range d.SeenBy {
		msg.SeenBy[domainuser.ID(id)] = timestampToTime(at)
	}
	return msg
}

func idSetToSlice(set map[domainuser.ID]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

func sliceToIDSet(ids []string) map[domainuser.ID]struct{} {
	out := make(map[domainuser.ID]struct{}, len(ids))
	for _, id := range ids {
		out[domainuser.ID(id)] = struct{}{}
	}
	return out
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ chat.Store = (*ConversationStore)(nil)
