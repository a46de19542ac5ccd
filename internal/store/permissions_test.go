package store

import (
	"errors"
	"testing"

	"github.com/zutrittswerk/portier/internal/entities"
)

func edge(groupID, resourceGroupID int64) entities.PermissionEdge {
	return entities.PermissionEdge{GroupID: groupID, ResourceGroupID: resourceGroupID}
}

func TestPermissionStore_AddIsIdempotent(t *testing.T) {
	s := NewPermissionStore()

	added, err := s.Add(entities.EffectAllow, edge(1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !added {
		t.Error("expected first add to report true")
	}

	added, err = s.Add(entities.EffectAllow, edge(1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added {
		t.Error("expected repeated add to report false")
	}

	if got := s.Count(entities.EffectAllow); got != 1 {
		t.Errorf("expected 1 allow edge, got %d", got)
	}
}

func TestPermissionStore_AllowAndDenyAreIndependent(t *testing.T) {
	s := NewPermissionStore()

	// The same pair may carry both effects; precedence is query-time
	if _, err := s.Add(entities.EffectAllow, edge(1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Add(entities.EffectDeny, edge(1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Count(entities.EffectAllow) != 1 || s.Count(entities.EffectDeny) != 1 {
		t.Errorf("expected one edge per effect, got %d allow / %d deny",
			s.Count(entities.EffectAllow), s.Count(entities.EffectDeny))
	}

	if err := s.Remove(entities.EffectAllow, edge(1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Count(entities.EffectDeny) != 1 {
		t.Error("removing the allow edge must not touch the deny edge")
	}
}

func TestPermissionStore_RemoveMissing(t *testing.T) {
	s := NewPermissionStore()

	if err := s.Remove(entities.EffectAllow, edge(1, 10)); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPermissionStore_TargetsFrom(t *testing.T) {
	s := NewPermissionStore()
	s.Add(entities.EffectAllow, edge(1, 10))
	s.Add(entities.EffectAllow, edge(1, 11))
	s.Add(entities.EffectAllow, edge(2, 12))
	s.Add(entities.EffectAllow, edge(3, 13))
	s.Add(entities.EffectDeny, edge(1, 14))

	got := s.TargetsFrom(entities.EffectAllow, map[int64]bool{1: true, 2: true})
	want := map[int64]bool{10: true, 11: true, 12: true}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for id := range want {
		if !got[id] {
			t.Errorf("expected target %d in %v", id, got)
		}
	}

	// Empty source set yields empty targets
	if got := s.TargetsFrom(entities.EffectAllow, nil); len(got) != 0 {
		t.Errorf("expected no targets, got %v", got)
	}
}

func TestPermissionStore_EdgesFromSorted(t *testing.T) {
	s := NewPermissionStore()
	s.Add(entities.EffectAllow, edge(2, 12))
	s.Add(entities.EffectAllow, edge(1, 11))
	s.Add(entities.EffectAllow, edge(1, 10))

	edges := s.EdgesFrom(entities.EffectAllow, map[int64]bool{1: true, 2: true})
	if len(edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(edges))
	}
	want := []entities.PermissionEdge{edge(1, 10), edge(1, 11), edge(2, 12)}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("expected %v at position %d, got %v", want[i], i, edges[i])
		}
	}
}

func TestPermissionStore_RemoveAllForGroup(t *testing.T) {
	s := NewPermissionStore()
	s.Add(entities.EffectAllow, edge(1, 10))
	s.Add(entities.EffectAllow, edge(1, 11))
	s.Add(entities.EffectDeny, edge(1, 12))
	s.Add(entities.EffectAllow, edge(2, 10))

	s.RemoveAllForGroup(1)

	if s.Count(entities.EffectAllow) != 1 || s.Count(entities.EffectDeny) != 0 {
		t.Errorf("expected only group 2's edge to survive, got %d allow / %d deny",
			s.Count(entities.EffectAllow), s.Count(entities.EffectDeny))
	}
}

func TestPermissionStore_RemoveAllForResourceGroup(t *testing.T) {
	s := NewPermissionStore()
	s.Add(entities.EffectAllow, edge(1, 10))
	s.Add(entities.EffectDeny, edge(2, 10))
	s.Add(entities.EffectAllow, edge(2, 11))

	s.RemoveAllForResourceGroup(10)

	if s.Count(entities.EffectAllow) != 1 || s.Count(entities.EffectDeny) != 0 {
		t.Errorf("expected only the edge to 11 to survive, got %d allow / %d deny",
			s.Count(entities.EffectAllow), s.Count(entities.EffectDeny))
	}
}
