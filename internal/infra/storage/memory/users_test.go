package memory

import (
	"context"
	"testing"
	"time"

	domainuser "artisanchat/internal/domain/user"
)

func seedUser(t *testing.T, repo *UserRepository, id, username, fullName string) *domainuser.User {
	t.Helper()
	u, err := domainuser.New(domainuser.CreateParams{
		ID:       domainuser.ID(id),
		Username: username,
		FullName: fullName,
	})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	if err := repo.Save(context.Background(), u); err != nil {
		t.Fatalf("save %s: %v", username, err)
	}
	return u
}

func TestUserRepositoryLookups(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	seedUser(t, repo, "u1", "Alice", "Alice Weaver")

	byID, err := repo.ByID(ctx, "u1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if byID.Username != "alice" {
		t.Errorf("username should be normalized, got %q", byID.Username)
	}

	// Username lookup ignores case and whitespace.
	byName, err := repo.ByUsername(ctx, "  ALICE ")
	if err != nil {
		t.Fatalf("ByUsername: %v", err)
	}
	if byName.ID != "u1" {
		t.Errorf("ByUsername resolved %q", byName.ID)
	}

	if _, err := repo.ByID(ctx, "ghost"); err != domainuser.ErrNotFound {
		t.Errorf("missing id error = %v", err)
	}
	if _, err := repo.ByUsername(ctx, "ghost"); err != domainuser.ErrNotFound {
		t.Errorf("missing username error = %v", err)
	}
}

func TestUserRepositoryUsernameTaken(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice", "Alice Weaver")

	dup, err := domainuser.New(domainuser.CreateParams{ID: "u2", Username: "ALICE", FullName: "Impostor"})
	if err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	if err := repo.Save(ctx, dup); err != domainuser.ErrUsernameTaken {
		t.Errorf("duplicate save error = %v", err)
	}

	// Saving the same user again is an update, not a conflict.
	original, _ := repo.ByID(ctx, "u1")
	original.Bio = "ceramicist"
	if err := repo.Save(ctx, original); err != nil {
		t.Fatalf("update save: %v", err)
	}
}

func TestUserRepositoryRenameReindexes(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice", "Alice Weaver")

	renamed, _ := repo.ByID(ctx, "u1")
	renamed.Username = "alicja"
	if err := repo.Save(ctx, renamed); err != nil {
		t.Fatalf("rename save: %v", err)
	}

	if _, err := repo.ByUsername(ctx, "alice"); err != domainuser.ErrNotFound {
		t.Errorf("old username should be released, got %v", err)
	}
	if found, err := repo.ByUsername(ctx, "alicja"); err != nil || found.ID != "u1" {
		t.Errorf("new username lookup = %v, %v", found, err)
	}

	// The released name is free for someone else.
	seedUser(t, repo, "u2", "alice", "New Alice")
}

func TestUserRepositorySearch(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice", "Alice the Potter")
	seedUser(t, repo, "u2", "bob", "Bob Potter")
	seedUser(t, repo, "u3", "carol", "Carol Smith")

	// Matches username or full name, ordered by username.
	found, err := repo.Search(ctx, "potter", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 2 || found[0].Username != "alice" || found[1].Username != "bob" {
		t.Fatalf("search results: %+v", found)
	}

	limited, err := repo.Search(ctx, "potter", 1)
	if err != nil {
		t.Fatalf("Search limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Username != "alice" {
		t.Errorf("limited results: %+v", limited)
	}

	empty, err := repo.Search(ctx, "   ", 10)
	if err != nil || empty != nil {
		t.Errorf("blank query = %v, %v", empty, err)
	}
}

func TestUserRepositoryCloneIsolation(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice", "Alice Weaver")

	loaded, _ := repo.ByID(ctx, "u1")
	loaded.FullName = "mutated"
	loaded.Followers["u9"] = struct{}{}

	fresh, _ := repo.ByID(ctx, "u1")
	if fresh.FullName != "Alice Weaver" {
		t.Errorf("stored user mutated through returned copy")
	}
	if _, ok := fresh.Followers["u9"]; ok {
		t.Errorf("stored follower set mutated through returned copy")
	}
}

func TestUserRepositorySetPresence(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice", "Alice Weaver")

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SetPresence(ctx, "u1", true, stamp); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	loaded, _ := repo.ByID(ctx, "u1")
	if !loaded.IsOnline || !loaded.LastSeen.Equal(stamp) {
		t.Errorf("presence not applied: online=%v lastSeen=%v", loaded.IsOnline, loaded.LastSeen)
	}

	if err := repo.SetPresence(ctx, "ghost", true, stamp); err != domainuser.ErrNotFound {
		t.Errorf("missing user error = %v", err)
	}
}
