package dto

import (
	"time"

	"artisanchat/internal/domain/task"
)

type Task struct {
	ID          string        `json:"id"`
	GroupID     string        `json:"group_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	CreatedBy   string        `json:"created_by"`
	AssignedTo  string        `json:"assigned_to,omitempty"`
	Status      string        `json:"status"`
	Priority    string        `json:"priority"`
	Tags        []string      `json:"tags,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Comments    []TaskComment `json:"comments,omitempty"`
	IsOverdue   bool          `json:"is_overdue"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type TaskComment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskList struct {
	Items  []Task `json:"items"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func MapTask(t *task.Task, now time.Time) Task {
	if t == nil {
		return Task{}
	}
	out := Task{
		ID:          string(t.ID),
		GroupID:     string(t.GroupID),
		Title:       t.Title,
		Description: t.Description,
		CreatedBy:   string(t.CreatedBy),
		AssignedTo:  string(t.AssignedTo),
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Tags:        append([]string(nil), t.Tags...),
		IsOverdue:   t.IsOverdue(now),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if !t.DueDate.IsZero() {
		due := t.DueDate
		out.DueDate = &due
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		out.CompletedAt = &completed
	}
	for _, comment := range t.Comments {
		out.Comments = append(out.Comments, TaskComment{
			ID:        comment.ID,
			UserID:    string(comment.UserID),
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}
	return out
}
