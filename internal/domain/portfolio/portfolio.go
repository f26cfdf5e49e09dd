package portfolio

import (
	"context"
	"errors"
	"strings"
	"time"

	"artisanchat/internal/domain/user"
)

var (
	ErrIDRequired      = errors.New("portfolio: id is required")
	ErrOwnerRequired   = errors.New("portfolio: owner is required")
	ErrTitleRequired   = errors.New("portfolio: title is required")
	ErrFileRequired    = errors.New("portfolio: file reference is required")
	ErrInvalidCategory = errors.New("portfolio: invalid category")
	ErrCommentRequired = errors.New("portfolio: comment content is required")
	ErrCommentTooLong  = errors.New("portfolio: comment exceeds 500 characters")
	ErrNotFound        = errors.New("portfolio: not found")
	ErrNotOwner        = errors.New("portfolio: only the owner may modify this item")
)

type ID string

type Category string

const (
	GraphicDesign Category = "graphic-design"
	Photography   Category = "photography"
	Illustration  Category = "illustration"
	WebDesign     Category = "web-design"
	UIUX          Category = "ui-ux"
	Branding      Category = "branding"
	Animation     Category = "animation"
	Video         Category = "video"
	Writing       Category = "writing"
	Other         Category = "other"
)

func validCategory(c Category) bool {
	switch c {
	case GraphicDesign, Photography, Illustration, WebDesign, UIUX,
		Branding, Animation, Video, Writing, Other:
		return true
	}
	return false
}

type Comment struct {
	ID        string
	UserID    user.ID
	Content   string
	CreatedAt time.Time
}

// Item is a single portfolio entry. Likes are a per-user set; liking twice
// toggles the like off, matching the client behavior.
type Item struct {
	ID           ID
	Owner        user.ID
	Title        string
	Description  string
	FileKey      string
	FileName     string
	FileSize     int64
	ThumbnailKey string
	Category     Category
	Tags         []string
	Likes        map[user.ID]time.Time
	Comments     []Comment
	Views        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Item, error)
	ByOwner(ctx context.Context, owner user.ID, limit, offset int) ([]*Item, error)
	Popular(ctx context.Context, limit int) ([]*Item, error)
	Save(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id ID) error
}

type CreateParams struct {
	ID           ID
	Owner        user.ID
	Title        string
	Description  string
	FileKey      string
	FileName     string
	FileSize     int64
	ThumbnailKey string
	Category     Category
	Tags         []string
	CreatedAt    time.Time
}

func New(params CreateParams) (*Item, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(params.FileKey) == "" {
		return nil, ErrFileRequired
	}
	if !validCategory(params.Category) {
		return nil, ErrInvalidCategory
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Item{
		ID:           params.ID,
		Owner:        params.Owner,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		FileKey:      strings.TrimSpace(params.FileKey),
		FileName:     strings.TrimSpace(params.FileName),
		FileSize:     params.FileSize,
		ThumbnailKey: strings.TrimSpace(params.ThumbnailKey),
		Category:     params.Category,
		Tags:         normalizeTags(params.Tags),
		Likes:        make(map[user.ID]time.Time),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Update carries partial edits; nil fields keep the current value. Tags are
// replaced wholesale when non-nil.
type Update struct {
	Title       *string
	Description *string
	Category    *Category
	Tags        []string
}

func (i *Item) UpdateDetails(update Update, now time.Time) error {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return ErrTitleRequired
		}
		i.Title = title
	}
	if update.Description != nil {
		i.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		if !validCategory(*update.Category) {
			return ErrInvalidCategory
		}
		i.Category = *update.Category
	}
	if update.Tags != nil {
		i.Tags = normalizeTags(update.Tags)
	}
	if now.IsZero() {
		now = time.Now()
	}
	i.UpdatedAt = now.UTC()
	return nil
}

// ToggleLike flips the like state for id and reports whether the item is now
// liked by them.
func (i *Item) ToggleLike(id user.ID, at time.Time) bool {
	if i.Likes == nil {
		i.Likes = make(map[user.ID]time.Time)
	}
	if _, ok := i.Likes[id]; ok {
		delete(i.Likes, id)
		return false
	}
	if at.IsZero() {
		at = time.Now()
	}
	i.Likes[id] = at.UTC()
	return true
}

func (i *Item) LikedBy(id user.ID) bool {
	_, ok := i.Likes[id]
	return ok
}

func (i *Item) AddComment(commentID string, author user.ID, content string, at time.Time) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrCommentRequired
	}
	if len(content) > 500 {
		return nil, ErrCommentTooLong
	}
	if at.IsZero() {
		at = time.Now()
	}
	comment := Comment{
		ID:        commentID,
		UserID:    author,
		Content:   content,
		CreatedAt: at.UTC(),
	}
	i.Comments = append(i.Comments, comment)
	i.UpdatedAt = comment.CreatedAt
	return &i.Comments[len(i.Comments)-1], nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" || len(trimmed) > 30 {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
