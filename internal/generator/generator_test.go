package generator

import (
	"testing"
)

func TestGenerate_ProducesValidDataset(t *testing.T) {
	cfg := Config{Users: 200, Doors: 100, Groups: 30, DoorGroups: 25, Seed: 42}
	d := Generate(cfg)

	if err := d.Validate(); err != nil {
		t.Fatalf("generated dataset failed validation: %v", err)
	}

	if len(d.Principals) != cfg.Users {
		t.Errorf("expected %d users, got %d", cfg.Users, len(d.Principals))
	}
	if len(d.Resources) != cfg.Doors {
		t.Errorf("expected %d doors, got %d", cfg.Doors, len(d.Resources))
	}
	if len(d.PrincipalGroups) == 0 || len(d.ResourceGroups) == 0 {
		t.Fatal("expected non-empty hierarchies")
	}

	// Every user belongs to at least one group, every group allows something
	if len(d.Memberships) < cfg.Users {
		t.Errorf("expected at least one membership per user, got %d rows", len(d.Memberships))
	}
	if len(d.Allows) < len(d.PrincipalGroups)*3 {
		t.Errorf("expected at least 3 allow edges per group, got %d", len(d.Allows))
	}

	// Denies are sparse, not absent
	if len(d.Denies) == 0 {
		t.Error("expected some deny edges")
	}
	if len(d.Denies) >= len(d.Allows) {
		t.Errorf("expected denies (%d) to be sparser than allows (%d)", len(d.Denies), len(d.Allows))
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := Config{Users: 50, Doors: 20, Groups: 10, DoorGroups: 8, Seed: 7}
	first := Generate(cfg)
	second := Generate(cfg)

	if len(first.Memberships) != len(second.Memberships) {
		t.Fatalf("same seed produced different membership counts: %d vs %d",
			len(first.Memberships), len(second.Memberships))
	}
	for i := range first.Memberships {
		if first.Memberships[i] != second.Memberships[i] {
			t.Fatalf("same seed produced different memberships at row %d", i)
		}
	}
	for i := range first.Allows {
		if first.Allows[i] != second.Allows[i] {
			t.Fatalf("same seed produced different allow edges at row %d", i)
		}
	}
}

func TestGenerate_HierarchiesHaveDepth(t *testing.T) {
	d := Generate(Config{Users: 10, Doors: 10, Groups: 40, DoorGroups: 40, Seed: 1})

	var nested int
	for _, g := range d.PrincipalGroups {
		if g.ParentID != nil {
			nested++
		}
	}
	if nested == 0 {
		t.Error("expected nested user groups")
	}

	nested = 0
	for _, g := range d.ResourceGroups {
		if g.ParentID != nil {
			nested++
		}
	}
	if nested == 0 {
		t.Error("expected nested door groups")
	}
}

func TestDemoDataset_Valid(t *testing.T) {
	d := DemoDataset()
	if err := d.Validate(); err != nil {
		t.Fatalf("demo dataset failed validation: %v", err)
	}

	if len(d.Principals) != 4 || len(d.Resources) != 4 {
		t.Errorf("unexpected demo dataset shape: %d users, %d doors",
			len(d.Principals), len(d.Resources))
	}
}
