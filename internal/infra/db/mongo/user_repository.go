package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainauth "artisanchat/internal/domain/auth"
	domainuser "artisanchat/internal/domain/user"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("agg_user")}
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "full_name", Value: 1}}},
	})
	return err
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *UserRepository) ByUsername(ctx context.Context, username string) (*domainuser.User, error) {
	var doc userDocument
	key := strings.ToLower(strings.TrimSpace(username))
	if err := r.col.FindOne(ctx, bson.M{"username": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *UserRepository) Search(ctx context.Context, query string, limit int) ([]*domainuser.User, error) {
	needle := strings.TrimSpace(query)
	if needle == "" {
		return nil, nil
	}
	pattern := primitive.Regex{Pattern: regexQuote(needle), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"username": pattern},
		bson.M{"full_name": pattern},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domainuser.User
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *UserRepository) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || user.ID == "" {
		return domainuser.ErrIDRequired
	}
	doc := newUserDocument(user)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainuser.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) SetPresence(ctx context.Context, id domainuser.ID, online bool, lastSeen time.Time) error {
	update := bson.M{"$set": bson.M{"is_online": online, "last_seen": lastSeen.UnixMilli()}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func regexQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

type userDocument struct {
	ID             string   `bson:"_id"`
	Username       string   `bson:"username"`
	FullName       string   `bson:"full_name"`
	Bio            string   `bson:"bio,omitempty"`
	Skills         []string `bson:"skills,omitempty"`
	Location       string   `bson:"location,omitempty"`
	ProfilePicture string   `bson:"profile_picture,omitempty"`
	Followers      []string `bson:"followers,omitempty"`
	Following      []string `bson:"following,omitempty"`
	IsOnline       bool     `bson:"is_online"`
	LastSeen       int64    `bson:"last_seen,omitempty"`
	CreatedAt      int64    `bson:"created_at"`
	UpdatedAt      int64    `bson:"updated_at"`
}

func newUserDocument(u *domainuser.User) userDocument {
	doc := userDocument{
		ID:             string(u.ID),
		Username:       u.Username,
		FullName:       u.FullName,
		Bio:            u.Bio,
		Skills:         append([]string(nil), u.Skills...),
		Location:       u.Location,
		ProfilePicture: u.ProfilePicture,
		Followers:      idSetToSlice(u.Followers),
		Following:      idSetToSlice(u.Following),
		IsOnline:       u.IsOnline,
		CreatedAt:      u.CreatedAt.UnixMilli(),
		UpdatedAt:      u.UpdatedAt.UnixMilli(),
	}
	if !u.LastSeen.IsZero() {
		doc.LastSeen = u.LastSeen.UnixMilli()
	}
	return doc
}

func (d userDocument) toAggregate() *domainuser.User {
	agg := &domainuser.User{
		ID:             domainuser.ID(d.ID),
		Username:       d.Username,
		FullName:       d.FullName,
		Bio:            d.Bio,
		Skills:         append([]string(nil), d.Skills...),
		Location:       d.Location,
		ProfilePicture: d.ProfilePicture,
		Followers:      sliceToIDSet(d.Followers),
		Following:      sliceToIDSet(d.Following),
		IsOnline:       d.IsOnline,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
	if d.LastSeen != 0 {
		agg.LastSeen = timestampToTime(d.LastSeen)
	}
	return agg
}

// SessionStore keeps bearer sessions in a TTL collection; Mongo removes
// expired documents on its own sweep, the store still checks on read.
type SessionStore struct {
	col *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{col: db.Collection("sessions")}
}

func (s *SessionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires_at_ts", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	return err
}

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	if session == nil {
		return domainauth.ErrTokenRequired
	}
	doc := sessionDocument{
		Token:       string(session.Token),
		UserID:      string(session.UserID),
		CreatedAt:   session.CreatedAt.UnixMilli(),
		ExpiresAt:   session.ExpiresAt.UnixMilli(),
		ExpiresAtTS: primitive.NewDateTimeFromTime(session.ExpiresAt),
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.Token}, doc, opts)
	return err
}

func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	var doc sessionDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": string(token)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainauth.ErrSessionNotFound
		}
		return nil, err
	}
	session := doc.toAggregate()
	if session.Expired(time.Now()) {
		_ = s.Delete(ctx, token)
		return nil, domainauth.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token domainauth.Token) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": string(token)})
	return err
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID domainuser.ID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"user_id": string(userID)})
	return err
}

type sessionDocument struct {
	Token       string             `bson:"_id"`
	UserID      string             `bson:"user_id"`
	CreatedAt   int64              `bson:"created_at"`
	ExpiresAt   int64              `bson:"expires_at"`
	ExpiresAtTS primitive.DateTime `bson:"expires_at_ts"`
}

func (d sessionDocument) toAggregate() *domainauth.Session {
	return &domainauth.Session{
		Token:     domainauth.Token(d.Token),
		UserID:    domainuser.ID(d.UserID),
		CreatedAt: timestampToTime(d.CreatedAt),
		ExpiresAt: timestampToTime(d.ExpiresAt),
	}
}

var _ domainuser.Repository = (*UserRepository)(nil)
var _ domainauth.SessionStore = (*SessionStore)(nil)
