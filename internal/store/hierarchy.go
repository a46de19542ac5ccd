package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zutrittswerk/portier/internal/entities"
)

// Hierarchy is an in-memory forest index over groups. It maintains both
// walk directions (parent pointers and child adjacency lists) and answers
// ancestor and descendant queries as reflexive-transitive closures.
//
// All walks are bounded by the current node count: a walk that exceeds the
// bound fails with ErrHierarchyCycle instead of looping forever. Reparent
// rejects edits that would introduce a cycle, so a well-formed index never
// trips the guard; it protects against malformed imports and mutation races.
type Hierarchy struct {
	mu       sync.RWMutex
	groups   map[int64]entities.Group
	children map[int64][]int64
}

// NewHierarchy creates an empty hierarchy index.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		groups:   make(map[int64]entities.Group),
		children: make(map[int64][]int64),
	}
}

// Add inserts a new group node.
// Returns ErrDuplicate if the id is taken, ErrDanglingReference if the
// parent does not exist.
func (h *Hierarchy) Add(g entities.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[g.ID]; ok {
		return fmt.Errorf("%w: group %d", entities.ErrDuplicate, g.ID)
	}
	if g.ParentID != nil {
		if _, ok := h.groups[*g.ParentID]; !ok {
			return fmt.Errorf("%w: parent group %d", entities.ErrDanglingReference, *g.ParentID)
		}
	}

	h.groups[g.ID] = g
	if g.ParentID != nil {
		h.children[*g.ParentID] = append(h.children[*g.ParentID], g.ID)
	}
	return nil
}

// Rename changes a group's display name.
func (h *Hierarchy) Rename(id int64, name string) error {
	if name == "" {
		return fmt.Errorf("%w: group name is required", entities.ErrInvalidInput)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[id]
	if !ok {
		return fmt.Errorf("%w: group %d", entities.ErrNotFound, id)
	}
	g.Name = name
	h.groups[id] = g
	return nil
}

// Reparent moves a group under a new parent (nil makes it a root).
// The edit is rejected with ErrHierarchyCycle if the new parent is the group
// itself or any of its descendants; the hierarchy is left unchanged on failure.
func (h *Hierarchy) Reparent(id int64, newParent *int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[id]
	if !ok {
		return fmt.Errorf("%w: group %d", entities.ErrNotFound, id)
	}
	if newParent != nil {
		if *newParent == id {
			return fmt.Errorf("%w: group %d cannot be its own parent", entities.ErrHierarchyCycle, id)
		}
		if _, ok := h.groups[*newParent]; !ok {
			return fmt.Errorf("%w: parent group %d", entities.ErrDanglingReference, *newParent)
		}
		// Walking up from the candidate parent must not reach the group itself.
		steps := 0
		for cur := newParent; cur != nil; {
			if *cur == id {
				return fmt.Errorf("%w: reparenting group %d under %d", entities.ErrHierarchyCycle, id, *newParent)
			}
			steps++
			if steps > len(h.groups) {
				return fmt.Errorf("%w: walk exceeded %d nodes", entities.ErrHierarchyCycle, len(h.groups))
			}
			next, ok := h.groups[*cur]
			if !ok {
				break
			}
			cur = next.ParentID
		}
	}

	if g.ParentID != nil {
		h.children[*g.ParentID] = removeID(h.children[*g.ParentID], id)
	}
	g.ParentID = newParent
	h.groups[id] = g
	if newParent != nil {
		h.children[*newParent] = append(h.children[*newParent], id)
	}
	return nil
}

// Remove deletes a leaf group. Groups with children are rejected so the
// forest never holds a dangling parent pointer; callers cascade bottom-up.
func (h *Hierarchy) Remove(id int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[id]
	if !ok {
		return fmt.Errorf("%w: group %d", entities.ErrNotFound, id)
	}
	if len(h.children[id]) > 0 {
		return fmt.Errorf("%w: group %d still has %d child groups", entities.ErrInvalidInput, id, len(h.children[id]))
	}

	if g.ParentID != nil {
		h.children[*g.ParentID] = removeID(h.children[*g.ParentID], id)
	}
	delete(h.children, id)
	delete(h.groups, id)
	return nil
}

// Get returns a group by id.
func (h *Hierarchy) Get(id int64) (entities.Group, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g, ok := h.groups[id]
	if !ok {
		return entities.Group{}, fmt.Errorf("%w: group %d", entities.ErrNotFound, id)
	}
	return g, nil
}

// Exists reports whether a group id is present.
func (h *Hierarchy) Exists(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[id]
	return ok
}

// List returns all groups ordered by id.
func (h *Hierarchy) List() []entities.Group {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]entities.Group, 0, len(h.groups))
	for _, g := range h.groups {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Len returns the number of groups in the index.
func (h *Hierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// Ancestors returns the transitive parents of a group, nearest first.
// The group itself is excluded.
func (h *Hierarchy) Ancestors(id int64) ([]int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g, ok := h.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: group %d", entities.ErrNotFound, id)
	}

	var result []int64
	for cur := g.ParentID; cur != nil; {
		if len(result) >= len(h.groups) {
			return nil, fmt.Errorf("%w: ancestor walk from group %d exceeded %d nodes", entities.ErrHierarchyCycle, id, len(h.groups))
		}
		result = append(result, *cur)
		next, ok := h.groups[*cur]
		if !ok {
			break
		}
		cur = next.ParentID
	}
	return result, nil
}

// Descendants returns the reflexive-transitive child closure of a group
// as a set (the group itself included). Used to expand a permission edge
// on a resource group to everything below it.
func (h *Hierarchy) Descendants(id int64) (map[int64]bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.groups[id]; !ok {
		return nil, fmt.Errorf("%w: group %d", entities.ErrNotFound, id)
	}
	result := make(map[int64]bool)
	if err := h.expandLocked(id, result); err != nil {
		return nil, err
	}
	return result, nil
}

// DescendantsOfSet expands every group in the starting set at once,
// returning the union of their reflexive-transitive closures. Unknown ids
// are skipped: a permission edge can outlive its target only transiently
// during a cascading delete, and an absent subtree contributes nothing.
func (h *Hierarchy) DescendantsOfSet(ids map[int64]bool) (map[int64]bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[int64]bool)
	for id := range ids {
		if _, ok := h.groups[id]; !ok {
			continue
		}
		if err := h.expandLocked(id, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// expandLocked is an iterative BFS over child edges, bounded by node count.
// Caller holds at least a read lock.
func (h *Hierarchy) expandLocked(id int64, result map[int64]bool) error {
	queue := []int64{id}
	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if result[cur] {
			continue
		}
		visited++
		if visited > len(h.groups) {
			return fmt.Errorf("%w: descendant walk from group %d exceeded %d nodes", entities.ErrHierarchyCycle, id, len(h.groups))
		}
		result[cur] = true
		queue = append(queue, h.children[cur]...)
	}
	return nil
}

func removeID(ids []int64, id int64) []int64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
