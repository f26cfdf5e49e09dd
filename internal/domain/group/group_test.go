package group

import (
	"errors"
	"testing"
	"time"

	"artisanchat/internal/domain/user"
)

func newCrew(t *testing.T) *Group {
	t.Helper()
	g, err := New(CreateParams{ID: "g1", Name: "print studio", Creator: "alice"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func TestNewValidation(t *testing.T) {
	if _, err := New(CreateParams{ID: "g1", Creator: "alice"}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
	if _, err := New(CreateParams{ID: "g1", Name: "crew"}); !errors.Is(err, ErrCreatorRequired) {
		t.Errorf("expected ErrCreatorRequired, got %v", err)
	}
}

func TestCreatorStartsAsAdmin(t *testing.T) {
	g := newCrew(t)
	if !g.IsAdmin("alice") {
		t.Error("creator should be admin")
	}
	role, ok := g.RoleOf("alice")
	if !ok || role != RoleAdmin {
		t.Errorf("RoleOf = %v, %v", role, ok)
	}
}

func TestAddMemberRules(t *testing.T) {
	g := newCrew(t)
	now := time.Now()

	if err := g.AddMember("bob", "carol", "", now); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("non-admin add: expected ErrAdminOnly, got %v", err)
	}
	if err := g.AddMember("alice", "bob", "", now); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	role, ok := g.RoleOf("bob")
	if !ok || role != RoleMember {
		t.Errorf("empty role should default to member, got %v", role)
	}
	// Re-adding keeps the existing membership untouched.
	if err := g.AddMember("alice", "bob", RoleAdmin, now); err != nil {
		t.Fatalf("idempotent add failed: %v", err)
	}
	if g.IsAdmin("bob") {
		t.Error("re-add must not escalate the existing role")
	}
}

func TestRemoveMemberRules(t *testing.T) {
	g := newCrew(t)
	now := time.Now()
	if err := g.AddMember("alice", "bob", "", now); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := g.RemoveMember("bob", "alice", now); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("non-admin removing another: expected ErrAdminOnly, got %v", err)
	}
	if err := g.RemoveMember("alice", "alice", now); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("expected ErrLastAdmin, got %v", err)
	}
	if err := g.RemoveMember("bob", "bob", now); err != nil {
		t.Fatalf("self leave failed: %v", err)
	}
	if g.IsMember("bob") {
		t.Error("bob should be gone")
	}
}

func TestChangeRoleGuardsLastAdmin(t *testing.T) {
	g := newCrew(t)
	now := time.Now()
	if err := g.AddMember("alice", "bob", "", now); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := g.ChangeRole("bob", "alice", RoleMember, now); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("expected ErrAdminOnly, got %v", err)
	}
	if err := g.ChangeRole("alice", "alice", RoleMember, now); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("demoting the only admin: expected ErrLastAdmin, got %v", err)
	}
	if err := g.ChangeRole("alice", "bob", RoleAdmin, now); err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if err := g.ChangeRole("bob", "alice", RoleMember, now); err != nil {
		t.Fatalf("demote with second admin failed: %v", err)
	}
	if g.IsAdmin("alice") {
		t.Error("alice should be demoted")
	}
	if err := g.ChangeRole("bob", "ghost", RoleAdmin, now); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestMemberIDs(t *testing.T) {
	g := newCrew(t)
	now := time.Now()
	g.AddMember("alice", "bob", "", now)
	g.AddMember("alice", "carol", "", now)

	ids := g.MemberIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 members, got %d", len(ids))
	}
	seen := make(map[user.ID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, want := range []user.ID{"alice", "bob", "carol"} {
		if !seen[want] {
			t.Errorf("missing member %s", want)
		}
	}
}

func TestUpdateInfo(t *testing.T) {
	g := newCrew(t)
	now := time.Now()
	g.AddMember("alice", "bob", "", now)

	name := "letterpress studio"
	private := true
	if err := g.UpdateInfo("bob", Update{Name: &name}, now); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("expected ErrAdminOnly, got %v", err)
	}
	if err := g.UpdateInfo("alice", Update{Name: &name, IsPrivate: &private}, now); err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}
	if g.Name != "letterpress studio" || !g.IsPrivate {
		t.Errorf("update not applied: name=%q private=%v", g.Name, g.IsPrivate)
	}

	blank := "   "
	if err := g.UpdateInfo("alice", Update{Name: &blank}, now); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
	if g.Name != "letterpress studio" {
		t.Errorf("rejected update should not apply, name=%q", g.Name)
	}

	desc := "  movable type only  "
	if err := g.UpdateInfo("alice", Update{Description: &desc}, now); err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}
	if g.Description != "movable type only" {
		t.Errorf("description = %q", g.Description)
	}
}
