package store

import (
	"errors"
	"testing"

	"github.com/zutrittswerk/portier/internal/entities"
)

func ptr(id int64) *int64 { return &id }

// buildTestForest creates:
//
//	1
//	├── 2
//	│   └── 4
//	└── 3
//	5 (separate root)
func buildTestForest(t *testing.T) *Hierarchy {
	t.Helper()
	h := NewHierarchy()
	groups := []entities.Group{
		{ID: 1, Name: "root"},
		{ID: 2, Name: "left", ParentID: ptr(1)},
		{ID: 3, Name: "right", ParentID: ptr(1)},
		{ID: 4, Name: "leaf", ParentID: ptr(2)},
		{ID: 5, Name: "island"},
	}
	for _, g := range groups {
		if err := h.Add(g); err != nil {
			t.Fatalf("failed to add group %d: %v", g.ID, err)
		}
	}
	return h
}

func TestHierarchy_Add(t *testing.T) {
	tests := []struct {
		name    string
		group   entities.Group
		wantErr error
	}{
		{
			name:  "new root group - should succeed",
			group: entities.Group{ID: 10, Name: "new root"},
		},
		{
			name:  "child of existing group - should succeed",
			group: entities.Group{ID: 10, Name: "child", ParentID: ptr(1)},
		},
		{
			name:    "duplicate id - should fail",
			group:   entities.Group{ID: 1, Name: "again"},
			wantErr: entities.ErrDuplicate,
		},
		{
			name:    "unknown parent - should fail",
			group:   entities.Group{ID: 10, Name: "orphan", ParentID: ptr(99)},
			wantErr: entities.ErrDanglingReference,
		},
		{
			name:    "missing name - should fail",
			group:   entities.Group{ID: 10},
			wantErr: entities.ErrInvalidInput,
		},
		{
			name:    "self-parent - should fail",
			group:   entities.Group{ID: 10, Name: "loop", ParentID: ptr(10)},
			wantErr: entities.ErrHierarchyCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := buildTestForest(t)
			err := h.Add(tt.group)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHierarchy_Ancestors(t *testing.T) {
	h := buildTestForest(t)

	tests := []struct {
		name string
		id   int64
		want []int64
	}{
		{name: "deep leaf lists nearest first", id: 4, want: []int64{2, 1}},
		{name: "direct child", id: 2, want: []int64{1}},
		{name: "root has no ancestors", id: 1, want: nil},
		{name: "island root has no ancestors", id: 5, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Ancestors(tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	if _, err := h.Ancestors(99); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown group, got %v", err)
	}
}

func TestHierarchy_Descendants(t *testing.T) {
	h := buildTestForest(t)

	got, err := h.Descendants(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[int64]bool{1: true, 2: true, 3: true, 4: true}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for id := range want {
		if !got[id] {
			t.Errorf("expected descendant %d in %v", id, got)
		}
	}

	// A leaf's closure is just itself
	got, err = h.Descendants(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !got[4] {
		t.Errorf("expected {4}, got %v", got)
	}
}

func TestHierarchy_DescendantsOfSet(t *testing.T) {
	h := buildTestForest(t)

	got, err := h.DescendantsOfSet(map[int64]bool{2: true, 5: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []int64{2, 4, 5} {
		if !got[id] {
			t.Errorf("expected %d in closure %v", id, got)
		}
	}
	if got[1] || got[3] {
		t.Errorf("unexpected nodes in closure %v", got)
	}

	// Unknown ids contribute nothing
	got, err = h.DescendantsOfSet(map[int64]bool{99: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty closure, got %v", got)
	}
}

func TestHierarchy_Reparent(t *testing.T) {
	t.Run("move subtree - should succeed", func(t *testing.T) {
		h := buildTestForest(t)
		if err := h.Reparent(2, ptr(3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		anc, err := h.Ancestors(4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(anc) != 3 || anc[0] != 2 || anc[1] != 3 || anc[2] != 1 {
			t.Errorf("expected ancestors [2 3 1], got %v", anc)
		}
	})

	t.Run("make group a root - should succeed", func(t *testing.T) {
		h := buildTestForest(t)
		if err := h.Reparent(2, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		anc, _ := h.Ancestors(2)
		if len(anc) != 0 {
			t.Errorf("expected no ancestors, got %v", anc)
		}
	})

	t.Run("reparent under own descendant - should fail and leave state unchanged", func(t *testing.T) {
		h := buildTestForest(t)
		err := h.Reparent(1, ptr(4))
		if !errors.Is(err, entities.ErrHierarchyCycle) {
			t.Fatalf("expected ErrHierarchyCycle, got %v", err)
		}
		// Hierarchy unchanged: 4 still resolves its old chain
		anc, err := h.Ancestors(4)
		if err != nil {
			t.Fatalf("unexpected error after rejected reparent: %v", err)
		}
		if len(anc) != 2 || anc[0] != 2 || anc[1] != 1 {
			t.Errorf("expected ancestors [2 1], got %v", anc)
		}
	})

	t.Run("reparent under itself - should fail", func(t *testing.T) {
		h := buildTestForest(t)
		if err := h.Reparent(3, ptr(3)); !errors.Is(err, entities.ErrHierarchyCycle) {
			t.Errorf("expected ErrHierarchyCycle, got %v", err)
		}
	})

	t.Run("unknown parent - should fail", func(t *testing.T) {
		h := buildTestForest(t)
		if err := h.Reparent(3, ptr(99)); !errors.Is(err, entities.ErrDanglingReference) {
			t.Errorf("expected ErrDanglingReference, got %v", err)
		}
	})
}

func TestHierarchy_Remove(t *testing.T) {
	h := buildTestForest(t)

	if err := h.Remove(2); !errors.Is(err, entities.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput removing group with children, got %v", err)
	}

	if err := h.Remove(4); err != nil {
		t.Fatalf("unexpected error removing leaf: %v", err)
	}
	if err := h.Remove(2); err != nil {
		t.Fatalf("unexpected error removing emptied group: %v", err)
	}
	if h.Exists(4) || h.Exists(2) {
		t.Error("removed groups still present")
	}

	if err := h.Remove(99); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHierarchy_Rename(t *testing.T) {
	h := buildTestForest(t)

	if err := h.Rename(1, "renamed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g, err := h.Get(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name != "renamed" {
		t.Errorf("expected renamed, got %s", g.Name)
	}

	if err := h.Rename(1, ""); !errors.Is(err, entities.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty name, got %v", err)
	}
	if err := h.Rename(99, "x"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHierarchy_List(t *testing.T) {
	h := buildTestForest(t)

	groups := h.List()
	if len(groups) != 5 {
		t.Fatalf("expected 5 groups, got %d", len(groups))
	}
	for i := 1; i < len(groups); i++ {
		if groups[i-1].ID >= groups[i].ID {
			t.Errorf("expected ids sorted ascending, got %v then %v", groups[i-1].ID, groups[i].ID)
		}
	}
}
