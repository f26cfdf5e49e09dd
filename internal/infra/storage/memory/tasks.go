package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/task"
)

// TaskRepository stores tasks in memory.
type TaskRepository struct {
	mu   sync.RWMutex
	byID map[task.ID]*task.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		byID: make(map[task.ID]*task.Task),
	}
}

func (r *TaskRepository) ByID(ctx context.Context, id task.ID) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byID[id]; ok {
		return cloneTask(t), nil
	}
	return nil, task.ErrNotFound
}

func (r *TaskRepository) ByGroup(ctx context.Context, groupID group.ID, limit, offset int) ([]*task.Task, error) {
	matched := r.collect(func(t *task.Task) bool { return t.GroupID == groupID })
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *TaskRepository) Overdue(ctx context.Context, groupID group.ID, now time.Time) ([]*task.Task, error) {
	return r.collect(func(t *task.Task) bool {
		return t.GroupID == groupID && t.IsOverdue(now)
	}), nil
}

func (r *TaskRepository) DueSoon(ctx context.Context, groupID group.ID, now time.Time, window time.Duration) ([]*task.Task, error) {
	deadline := now.Add(window)
	return r.collect(func(t *task.Task) bool {
		if t.GroupID != groupID || t.DueDate.IsZero() {
			return false
		}
		if t.Status == task.StatusCompleted || t.Status == task.StatusCancelled {
			return false
		}
		return t.DueDate.After(now) && !t.DueDate.After(deadline)
	}), nil
}

func (r *TaskRepository) Save(ctx context.Context, t *task.Task) error {
	if t == nil || t.ID == "" {
		return task.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id task.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return task.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *TaskRepository) collect(match func(*task.Task) bool) []*task.Task {
	r.mu.RLock()
	var matched []*task.Task
	for _, t := range r.byID {
		if match(t) {
			matched = append(matched, cloneTask(t))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func cloneTask(t *task.Task) *task.Task {
	if t == nil {
		return nil
	}
	copyTask := *t
	copyTask.Tags = append([]string(nil), t.Tags...)
	copyTask.Comments = append([]task.Comment(nil), t.Comments...)
	return &copyTask
}

var _ task.Repository = (*TaskRepository)(nil)
