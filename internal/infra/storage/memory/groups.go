package memory

import (
	"context"
	"sort"
	"sync"

	"artisanchat/internal/domain/group"
	domainuser "artisanchat/internal/domain/user"
)

// GroupRepository stores groups in memory.
type GroupRepository struct {
	mu   sync.RWMutex
	byID map[group.ID]*group.Group
}

func NewGroupRepository() *GroupRepository {
	return &GroupRepository{
		byID: make(map[group.ID]*group.Group),
	}
}

func (r *GroupRepository) ByID(ctx context.Context, id group.ID) (*group.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.byID[id]; ok {
		return cloneGroup(g), nil
	}
	return nil, group.ErrNotFound
}

func (r *GroupRepository) ByMember(ctx context.Context, member domainuser.ID) ([]*group.Group, error) {
	r.mu.RLock()
	var matched []*group.Group
	for _, g := range r.byID {
		if g.IsMember(member) {
			matched = append(matched, cloneGroup(g))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (r *GroupRepository) Save(ctx context.Context, g *group.Group) error {
	if g == nil || g.ID == "" {
		return group.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[g.ID] = cloneGroup(g)
	return nil
}

func (r *GroupRepository) Delete(ctx context.Context, id group.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return group.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func cloneGroup(g *group.Group) *group.Group {
	if g == nil {
		return nil
	}
	copyGroup := *g
	if g.Members != nil {
		copyGroup.Members = make(map[domainuser.ID]*group.Member, len(g.Members))
		for id, member := range g.Members {
			copyMember := *member
			copyGroup.Members[id] = &copyMember
		}
	}
	return &copyGroup
}

var _ group.Repository = (*GroupRepository)(nil)
