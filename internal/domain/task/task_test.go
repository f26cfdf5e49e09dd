package task

import (
	"errors"
	"testing"
	"time"
)

func newBoardTask(t *testing.T) *Task {
	t.Helper()
	created, err := New(CreateParams{
		ID:        "t1",
		GroupID:   "g1",
		Title:     "engrave plates",
		CreatedBy: "alice",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return created
}

func TestNewValidation(t *testing.T) {
	if _, err := New(CreateParams{GroupID: "g1", Title: "x", CreatedBy: "alice"}); !errors.Is(err, ErrIDRequired) {
		t.Errorf("expected ErrIDRequired, got %v", err)
	}
	if _, err := New(CreateParams{ID: "t1", Title: "x", CreatedBy: "alice"}); !errors.Is(err, ErrGroupRequired) {
		t.Errorf("expected ErrGroupRequired, got %v", err)
	}
	if _, err := New(CreateParams{ID: "t1", GroupID: "g1", CreatedBy: "alice"}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := New(CreateParams{ID: "t1", GroupID: "g1", Title: "x"}); !errors.Is(err, ErrCreatorRequired) {
		t.Errorf("expected ErrCreatorRequired, got %v", err)
	}
	if _, err := New(CreateParams{ID: "t1", GroupID: "g1", Title: "x", CreatedBy: "alice", Priority: "blazing"}); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	task := newBoardTask(t)
	now := time.Now()

	for _, next := range []Status{StatusInProgress, StatusReview, StatusCompleted} {
		if err := task.Transition(next, now); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
	if task.CompletedAt.IsZero() {
		t.Error("completion should stamp CompletedAt")
	}

	// Reopening clears the completion stamp.
	if err := task.Transition(StatusPending, now); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !task.CompletedAt.IsZero() {
		t.Error("reopening should clear CompletedAt")
	}
}

func TestTransitionRejectsSkips(t *testing.T) {
	task := newBoardTask(t)
	now := time.Now()

	if err := task.Transition(StatusCompleted, now); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("pending to completed: expected ErrInvalidStatus, got %v", err)
	}
	if err := task.Transition(StatusReview, now); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("pending to review: expected ErrInvalidStatus, got %v", err)
	}
	if task.Status != StatusPending {
		t.Errorf("rejected transition must not change status, got %s", task.Status)
	}
}

func TestCancelledReopensOnlyToPending(t *testing.T) {
	task := newBoardTask(t)
	now := time.Now()

	if err := task.Transition(StatusCancelled, now); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := task.Transition(StatusInProgress, now); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := task.Transition(StatusPending, now); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := newBoardTask(t)

	if task.IsOverdue(now) {
		t.Error("task without a due date is never overdue")
	}
	task.DueDate = now.Add(-time.Hour)
	if !task.IsOverdue(now) {
		t.Error("past due date should be overdue")
	}
	if err := task.Transition(StatusCancelled, now); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if task.IsOverdue(now) {
		t.Error("cancelled tasks are not overdue")
	}
}

func TestAddComment(t *testing.T) {
	task := newBoardTask(t)

	if _, err := task.AddComment("cm1", "bob", "   ", time.Now()); !errors.Is(err, ErrCommentRequired) {
		t.Errorf("expected ErrCommentRequired, got %v", err)
	}
	comment, err := task.AddComment("cm1", "bob", "plates look uneven", time.Now())
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if comment.UserID != "bob" || comment.Content != "plates look uneven" {
		t.Errorf("comment = %+v", comment)
	}
	if len(task.Comments) != 1 {
		t.Errorf("expected 1 comment, got %d", len(task.Comments))
	}
	if !task.UpdatedAt.Equal(comment.CreatedAt) {
		t.Error("comment should refresh UpdatedAt")
	}
}

func TestAssign(t *testing.T) {
	task := newBoardTask(t)
	task.Assign("carol", time.Now())
	if task.AssignedTo != "carol" {
		t.Errorf("AssignedTo = %q", task.AssignedTo)
	}
	// Clearing the assignee is allowed.
	task.Assign("", time.Now())
	if task.AssignedTo != "" {
		t.Errorf("AssignedTo should be cleared, got %q", task.AssignedTo)
	}
}

func TestApplyUpdate(t *testing.T) {
	created := newBoardTask(t)
	now := time.Now()

	title := "engrave copper plates"
	priority := PriorityHigh
	due := now.Add(24 * time.Hour)
	err := created.Apply(Update{Title: &title, Priority: &priority, DueDate: &due}, now)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if created.Title != title || created.Priority != PriorityHigh || !created.DueDate.Equal(due) {
		t.Errorf("update not applied: %+v", created)
	}

	blank := " "
	if err := created.Apply(Update{Title: &blank}, now); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("expected ErrTitleRequired, got %v", err)
	}
	bogus := Priority("blazing")
	if err := created.Apply(Update{Priority: &bogus}, now); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("expected ErrInvalidPriority, got %v", err)
	}
	if created.Title != title || created.Priority != PriorityHigh {
		t.Errorf("rejected updates should not apply: %+v", created)
	}

	cleared := time.Time{}
	if err := created.Apply(Update{DueDate: &cleared}, now); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !created.DueDate.IsZero() {
		t.Errorf("due date should be cleared, got %v", created.DueDate)
	}
}
