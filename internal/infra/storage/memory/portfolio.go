package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"artisanchat/internal/domain/portfolio"
	domainuser "artisanchat/internal/domain/user"
)

// PortfolioRepository stores portfolio items in memory.
type PortfolioRepository struct {
	mu   sync.RWMutex
	byID map[portfolio.ID]*portfolio.Item
}

func NewPortfolioRepository() *PortfolioRepository {
	return &PortfolioRepository{
		byID: make(map[portfolio.ID]*portfolio.Item),
	}
}

func (r *PortfolioRepository) ByID(ctx context.Context, id portfolio.ID) (*portfolio.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if item, ok := r.byID[id]; ok {
		return cloneItem(item), nil
	}
	return nil, portfolio.ErrNotFound
}

func (r *PortfolioRepository) ByOwner(ctx context.Context, owner domainuser.ID, limit, offset int) ([]*portfolio.Item, error) {
	r.mu.RLock()
	var matched []*portfolio.Item
	for _, item := range r.byID {
		if item.Owner == owner {
			matched = append(matched, cloneItem(item))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return pageItems(matched, limit, offset), nil
}

// Popular orders by like count, views breaking ties.
func (r *PortfolioRepository) Popular(ctx context.Context, limit int) ([]*portfolio.Item, error) {
	r.mu.RLock()
	matched := make([]*portfolio.Item, 0, len(r.byID))
	for _, item := range r.byID {
		matched = append(matched, cloneItem(item))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if len(matched[i].Likes) != len(matched[j].Likes) {
			return len(matched[i].Likes) > len(matched[j].Likes)
		}
		if matched[i].Views != matched[j].Views {
			return matched[i].Views > matched[j].Views
		}
		return matched[i].ID < matched[j].ID
	})
	return pageItems(matched, limit, 0), nil
}

func (r *PortfolioRepository) Save(ctx context.Context, item *portfolio.Item) error {
	if item == nil || item.ID == "" {
		return portfolio.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[item.ID] = cloneItem(item)
	return nil
}

func (r *PortfolioRepository) Delete(ctx context.Context, id portfolio.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return portfolio.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func pageItems(items []*portfolio.Item, limit, offset int) []*portfolio.Item {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneItem(item *portfolio.Item) *portfolio.Item {
	if item == nil {
		return nil
	}
	copyItem := *item
	copyItem.Tags = append([]string(nil), item.Tags...)
	copyItem.Comments = append([]portfolio.Comment(nil), item.Comments...)
	if item.Likes != nil {
		copyItem.Likes = make(map[domainuser.ID]time.Time, len(item.Likes))
		for id, at := range item.Likes {
			copyItem.Likes[id] = at
		}
	}
	return &copyItem
}

var _ portfolio.Repository = (*PortfolioRepository)(nil)
