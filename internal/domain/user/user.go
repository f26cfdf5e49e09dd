package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired       = errors.New("user: id is required")
	ErrUsernameRequired = errors.New("user: username is required")
	ErrUsernameTooShort = errors.New("user: username must be at least 3 characters")
	ErrFullNameRequired = errors.New("user: full name is required")
	ErrBioTooLong       = errors.New("user: bio exceeds 200 characters")
	ErrSelfFollow       = errors.New("user: cannot follow yourself")
	ErrNotFound         = errors.New("user: not found")
	ErrUsernameTaken    = errors.New("user: username already taken")
)

type ID string

// User is a creative professional's profile: identity, display fields and
// the follow graph. Presence fields (IsOnline, LastSeen) are written through
// from the realtime layer and are advisory for list rendering only.
type User struct {
	ID             ID
	Username       string
	FullName       string
	Bio            string
	Skills         []string
	Location       string
	ProfilePicture string
	Followers      map[ID]struct{}
	Following      map[ID]struct{}
	IsOnline       bool
	LastSeen       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	Search(ctx context.Context, query string, limit int) ([]*User, error)
	Save(ctx context.Context, user *User) error
	// SetPresence updates only the presence columns without touching the
	// rest of the document. Used by the write-through on connect/disconnect.
	SetPresence(ctx context.Context, id ID, online bool, lastSeen time.Time) error
}

type CreateParams struct {
	ID             ID
	Username       string
	FullName       string
	Bio            string
	Skills         []string
	Location       string
	ProfilePicture string
	CreatedAt      time.Time
}

func New(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	username := normalizeUsername(params.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(username) < 3 {
		return nil, ErrUsernameTooShort
	}
	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return nil, ErrFullNameRequired
	}
	bio := strings.TrimSpace(params.Bio)
	if len(bio) > 200 {
		return nil, ErrBioTooLong
	}

	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &User{
		ID:             ID(id),
		Username:       username,
		FullName:       fullName,
		Bio:            bio,
		Skills:         normalizeSkills(params.Skills),
		Location:       strings.TrimSpace(params.Location),
		ProfilePicture: strings.TrimSpace(params.ProfilePicture),
		Followers:      make(map[ID]struct{}),
		Following:      make(map[ID]struct{}),
		LastSeen:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

type ProfileUpdate struct {
	FullName       *string
	Bio            *string
	Skills         []string
	Location       *string
	ProfilePicture *string
}

func (u *User) UpdateProfile(update ProfileUpdate, now time.Time) error {
	if update.FullName != nil {
		fullName := strings.TrimSpace(*update.FullName)
		if fullName == "" {
			return ErrFullNameRequired
		}
		u.FullName = fullName
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if len(bio) > 200 {
			return ErrBioTooLong
		}
		u.Bio = bio
	}
	if update.Skills != nil {
		u.Skills = normalizeSkills(update.Skills)
	}
	if update.Location != nil {
		u.Location = strings.TrimSpace(*update.Location)
	}
	if update.ProfilePicture != nil {
		u.ProfilePicture = strings.TrimSpace(*update.ProfilePicture)
	}
	u.touch(now)
	return nil
}

// Follow records that follower now follows u. Idempotent.
func (u *User) Follow(follower ID, now time.Time) error {
	if follower == u.ID {
		return ErrSelfFollow
	}
	if u.Followers == nil {
		u.Followers = make(map[ID]struct{})
	}
	if _, ok := u.Followers[follower]; ok {
		return nil
	}
	u.Followers[follower] = struct{}{}
	u.touch(now)
	return nil
}

// Unfollow removes follower from u's follower set. Idempotent.
func (u *User) Unfollow(follower ID, now time.Time) {
	if _, ok := u.Followers[follower]; !ok {
		return
	}
	delete(u.Followers, follower)
	u.touch(now)
}

func (u *User) AddFollowing(target ID, now time.Time) error {
	if target == u.ID {
		return ErrSelfFollow
	}
	if u.Following == nil {
		u.Following = make(map[ID]struct{})
	}
	u.Following[target] = struct{}{}
	u.touch(now)
	return nil
}

func (u *User) RemoveFollowing(target ID, now time.Time) {
	if _, ok := u.Following[target]; !ok {
		return
	}
	delete(u.Following, target)
	u.touch(now)
}

func (u *User) IsFollowing(target ID) bool {
	_, ok := u.Following[target]
	return ok
}

func (u *User) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	u.UpdatedAt = now.UTC()
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(skills))
	normalized := make([]string, 0, len(skills))
	for _, skill := range skills {
		trimmed := strings.TrimSpace(skill)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
