package dto

import (
	"time"

	"artisanchat/internal/domain/portfolio"
)

type PortfolioItem struct {
	ID           string             `json:"id"`
	OwnerID      string             `json:"owner_id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	FileKey      string             `json:"file_key"`
	FileURL      string             `json:"file_url,omitempty"`
	ThumbnailKey string             `json:"thumbnail_key,omitempty"`
	Category     string             `json:"category"`
	Tags         []string           `json:"tags,omitempty"`
	Likes        int                `json:"likes"`
	LikedByMe    bool               `json:"liked_by_me"`
	Comments     []PortfolioComment `json:"comments,omitempty"`
	Views        int64              `json:"views"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type PortfolioComment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type PortfolioList struct {
	Items  []PortfolioItem `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func MapPortfolioItem(item *portfolio.Item, viewer string, fileURL string) PortfolioItem {
	if item == nil {
		return PortfolioItem{}
	}
	out := PortfolioItem{
		ID:           string(item.ID),
		OwnerID:      string(item.Owner),
		Title:        item.Title,
		Description:  item.Description,
		FileKey:      item.FileKey,
		FileURL:      fileURL,
		ThumbnailKey: item.ThumbnailKey,
		Category:     string(item.Category),
		Tags:         append([]string(nil), item.Tags...),
		Likes:        len(item.Likes),
		Views:        item.Views,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
	for _, comment := range item.Comments {
		out.Comments = append(out.Comments, PortfolioComment{
			ID:        comment.ID,
			UserID:    string(comment.UserID),
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}
	for id := range item.Likes {
		if string(id) == viewer {
			out.LikedByMe = true
			break
		}
	}
	return out
}
