package authorization

import (
	"context"
	"testing"

	"github.com/zutrittswerk/portier/internal/generator"
)

func TestExplainAccess_MatchesDecision(t *testing.T) {
	f := newFixture(t, generator.DemoDataset())
	ctx := context.Background()

	// For every demo user the explanation's final set must equal the
	// resolver's answer, name for name.
	for _, userID := range []int64{1, 2, 3, 4} {
		explanation, err := f.resolver.ExplainAccess(ctx, userID)
		if err != nil {
			t.Fatalf("unexpected error for user %d: %v", userID, err)
		}
		resources, err := f.resolver.ResolveAccessibleResources(ctx, userID)
		if err != nil {
			t.Fatalf("unexpected error for user %d: %v", userID, err)
		}
		if len(explanation.Resources) != len(resources) {
			t.Fatalf("user %d: explanation lists %d resources, resolver %d",
				userID, len(explanation.Resources), len(resources))
		}
		for i, r := range resources {
			if explanation.Resources[i] != r.Name {
				t.Errorf("user %d: explanation %q != resolved %q", userID, explanation.Resources[i], r.Name)
			}
		}
	}
}

func TestExplainAccess_TomHardware(t *testing.T) {
	f := newFixture(t, generator.DemoDataset())

	explanation, err := f.resolver.ExplainAccess(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if explanation.Principal.Name != "Tom Hardware" {
		t.Errorf("expected Tom Hardware, got %s", explanation.Principal.Name)
	}

	// Direct group first, then inherited ancestors by id
	if len(explanation.Groups) != 3 {
		t.Fatalf("expected 3 groups in scope, got %v", explanation.Groups)
	}
	if !explanation.Groups[0].Direct || explanation.Groups[0].ID != 3 {
		t.Errorf("expected direct group 3 first, got %+v", explanation.Groups[0])
	}
	if explanation.Groups[1].ID != 1 || explanation.Groups[1].Direct {
		t.Errorf("expected inherited group 1 second, got %+v", explanation.Groups[1])
	}
	if explanation.Groups[2].ID != 2 || explanation.Groups[2].Direct {
		t.Errorf("expected inherited group 2 third, got %+v", explanation.Groups[2])
	}

	// Tom's own group allows the lab area, Entwicklung's allow is inherited
	var sawDirectAllow, sawInheritedAllow bool
	for _, rule := range explanation.AllowRules {
		if rule.GroupID == 3 && rule.Direct {
			sawDirectAllow = true
		}
		if rule.GroupID == 2 && !rule.Direct {
			sawInheritedAllow = true
		}
	}
	if !sawDirectAllow || !sawInheritedAllow {
		t.Errorf("expected direct and inherited allow rules, got %+v", explanation.AllowRules)
	}

	// Both the direct and the inherited deny on the server area show up
	if len(explanation.DenyRules) != 2 {
		t.Errorf("expected 2 deny rules, got %+v", explanation.DenyRules)
	}

	// Final set: Haupteingang, HW-Labor, Kaffeeküche (sorted by name)
	want := []string{"HW-Labor", "Haupteingang", "Kaffeeküche"}
	if len(explanation.Resources) != len(want) {
		t.Fatalf("expected %v, got %v", want, explanation.Resources)
	}
	for i := range want {
		if explanation.Resources[i] != want[i] {
			t.Errorf("expected %v, got %v", want, explanation.Resources)
		}
	}
}

func TestResolveAll_AccessMatrix(t *testing.T) {
	f := newFixture(t, generator.DemoDataset())

	matrix, err := f.resolver.ResolveAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matrix) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(matrix))
	}

	// Ordered by principal name
	wantOrder := []string{"Anna Beispiel", "Lisa Admin", "Max Mustermann", "Tom Hardware"}
	for i, name := range wantOrder {
		if matrix[i].Principal.Name != name {
			t.Errorf("expected %s at row %d, got %s", name, i, matrix[i].Principal.Name)
		}
	}

	counts := map[string]int{}
	for _, row := range matrix {
		counts[row.Principal.Name] = len(row.ResourceNames)
	}
	if counts["Max Mustermann"] != 2 {
		t.Errorf("expected Max to reach 2 doors, got %d", counts["Max Mustermann"])
	}
	if counts["Tom Hardware"] != 3 {
		t.Errorf("expected Tom to reach 3 doors, got %d", counts["Tom Hardware"])
	}
	if counts["Lisa Admin"] != 3 {
		t.Errorf("expected Lisa to reach 3 doors, got %d", counts["Lisa Admin"])
	}
}
