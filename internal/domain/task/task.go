package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/user"
)

var (
	ErrIDRequired      = errors.New("task: id is required")
	ErrTitleRequired   = errors.New("task: title is required")
	ErrGroupRequired   = errors.New("task: group is required")
	ErrCreatorRequired = errors.New("task: creator is required")
	ErrInvalidStatus   = errors.New("task: invalid status transition")
	ErrInvalidPriority = errors.New("task: invalid priority")
	ErrCommentRequired = errors.New("task: comment content is required")
	ErrNotFound        = errors.New("task: not found")
)

type ID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// transitions lists the allowed next states. Completed and cancelled are
// terminal except for reopening to pending.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusReview, StatusPending, StatusCancelled},
	StatusReview:     {StatusCompleted, StatusInProgress, StatusCancelled},
	StatusCompleted:  {StatusPending},
	StatusCancelled:  {StatusPending},
}

type Comment struct {
	ID        string
	UserID    user.ID
	Content   string
	CreatedAt time.Time
}

type Task struct {
	ID          ID
	GroupID     group.ID
	Title       string
	Description string
	CreatedBy   user.ID
	AssignedTo  user.ID
	Status      Status
	Priority    Priority
	Tags        []string
	DueDate     time.Time
	CompletedAt time.Time
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Task, error)
	ByGroup(ctx context.Context, groupID group.ID, limit, offset int) ([]*Task, error)
	// Overdue returns incomplete tasks whose due date has passed at the
	// given instant; DueSoon returns incomplete tasks due inside the window.
	Overdue(ctx context.Context, groupID group.ID, now time.Time) ([]*Task, error)
	DueSoon(ctx context.Context, groupID group.ID, now time.Time, window time.Duration) ([]*Task, error)
	Save(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id ID) error
}

type CreateParams struct {
	ID          ID
	GroupID     group.ID
	Title       string
	Description string
	CreatedBy   user.ID
	AssignedTo  user.ID
	Priority    Priority
	Tags        []string
	DueDate     time.Time
	CreatedAt   time.Time
}

func New(params CreateParams) (*Task, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.GroupID)) == "" {
		return nil, ErrGroupRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(string(params.CreatedBy)) == "" {
		return nil, ErrCreatorRequired
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
	default:
		return nil, ErrInvalidPriority
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Task{
		ID:          params.ID,
		GroupID:     params.GroupID,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		CreatedBy:   params.CreatedBy,
		AssignedTo:  params.AssignedTo,
		Status:      StatusPending,
		Priority:    priority,
		Tags:        params.Tags,
		DueDate:     params.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Update carries partial edits; nil fields keep the current value. A non-nil
// zero DueDate clears the deadline.
type Update struct {
	Title       *string
	Description *string
	Priority    *Priority
	Tags        []string
	DueDate     *time.Time
}

func (t *Task) Apply(update Update, now time.Time) error {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return ErrTitleRequired
		}
		t.Title = title
	}
	if update.Description != nil {
		t.Description = strings.TrimSpace(*update.Description)
	}
	if update.Priority != nil {
		switch *update.Priority {
		case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		default:
			return ErrInvalidPriority
		}
		t.Priority = *update.Priority
	}
	if update.Tags != nil {
		t.Tags = update.Tags
	}
	if update.DueDate != nil {
		t.DueDate = *update.DueDate
	}
	t.UpdatedAt = timeOrNow(now)
	return nil
}

func (t *Task) Transition(next Status, now time.Time) error {
	for _, allowed := range transitions[t.Status] {
		if allowed == next {
			t.Status = next
			now = timeOrNow(now)
			if next == StatusCompleted {
				t.CompletedAt = now
			} else {
				t.CompletedAt = time.Time{}
			}
			t.UpdatedAt = now
			return nil
		}
	}
	return ErrInvalidStatus
}

func (t *Task) Assign(assignee user.ID, now time.Time) {
	t.AssignedTo = assignee
	t.UpdatedAt = timeOrNow(now)
}

func (t *Task) AddComment(commentID string, author user.ID, content string, at time.Time) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrCommentRequired
	}
	comment := Comment{
		ID:        commentID,
		UserID:    author,
		Content:   content,
		CreatedAt: timeOrNow(at),
	}
	t.Comments = append(t.Comments, comment)
	t.UpdatedAt = comment.CreatedAt
	return &t.Comments[len(t.Comments)-1], nil
}

func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate.IsZero() {
		return false
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	return t.DueDate.Before(timeOrNow(now))
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
