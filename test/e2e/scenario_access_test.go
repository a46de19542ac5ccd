package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/zutrittswerk/portier/internal/generator"
)

// TestScenarioDemoWalkthrough drives the whole API through the demo
// office: import, initial decisions, a new hire, a revocation and a
// reorganization, verifying the resolved access after every step.
func TestScenarioDemoWalkthrough(t *testing.T) {
	s := SetupE2ETest(t)

	t.Log("Step 1: Importing the demo dataset")
	s.MustDo(t, http.MethodPost, "/api/import", generator.DemoDataset(), http.StatusOK)
	stats := s.MustDo(t, http.MethodGet, "/api/stats", nil, http.StatusOK)
	if got := stats["users"].(float64); got != 4 {
		t.Fatalf("expected 4 users after import, got %v", got)
	}
	t.Log("✓ Dataset imported")

	t.Log("Step 2: Verifying the initial access decisions")
	s.CheckAccess(t, 1, 2, true)   // Max reaches the coffee kitchen
	s.CheckAccess(t, 1, 10, false) // but not the server room
	s.CheckAccess(t, 3, 5, true)   // Tom reaches the hardware lab
	s.CheckAccess(t, 3, 10, false) // but not the server room
	s.CheckAccess(t, 4, 10, true)  // Lisa administers the server room
	t.Log("✓ Initial decisions match the demo office")

	t.Log("Step 3: Onboarding a new administrator")
	s.MustDo(t, http.MethodPost, "/api/users",
		map[string]interface{}{"user_id": 20, "name": "Nina Neu", "email": "nina@firma.de"},
		http.StatusCreated)
	s.MustDo(t, http.MethodPost, "/api/user-groups",
		map[string]interface{}{"user_id": 20, "group_id": 4},
		http.StatusCreated)
	s.CheckAccess(t, 20, 10, true)
	s.CheckAccess(t, 20, 1, true)
	t.Log("✓ New hire inherits IT-Administration access")

	t.Log("Step 4: Revoking server room access for IT-Administration")
	s.MustDo(t, http.MethodPost, "/api/permissions/deny",
		map[string]interface{}{"group_id": 4, "dgroup_id": 3},
		http.StatusCreated)
	s.CheckAccess(t, 20, 10, false)
	s.CheckAccess(t, 4, 10, false)
	s.CheckAccess(t, 20, 1, true) // unrelated doors stay reachable
	t.Log("✓ Direct deny overrides the direct allow")

	t.Log("Step 5: Restoring access and reorganizing the hierarchy")
	s.MustDo(t, http.MethodDelete, "/api/permissions/deny/4/3", nil, http.StatusOK)
	s.CheckAccess(t, 20, 10, true)

	// Hardware-Entwicklung becomes a root group: Tom no longer inherits
	// the Mitarbeiter allow for the common areas.
	s.MustDo(t, http.MethodPut, "/api/groups/3/parent",
		map[string]interface{}{"parent_id": nil},
		http.StatusOK)
	s.CheckAccess(t, 3, 5, true)
	s.CheckAccess(t, 3, 1, false)
	t.Log("✓ Reparenting changes inherited permissions immediately")

	t.Log("Step 6: Checking the access matrix reflects all changes")
	matrix := s.MustDo(t, http.MethodGet, "/api/access-matrix", nil, http.StatusOK)
	if len(matrix) != 5 {
		t.Fatalf("expected 5 users in the matrix, got %d", len(matrix))
	}
	tom := matrix["Tom Hardware"].(map[string]interface{})
	if got := tom["door_count"].(float64); got != 1 {
		t.Fatalf("expected Tom down to 1 door after the reorg, got %v", got)
	}
	t.Log("✓ Matrix is consistent with the individual decisions")
}

// TestScenarioGeneratedLoad imports a generated mid-size dataset and
// spot-checks that every decision endpoint stays consistent with the
// resolved door sets.
func TestScenarioGeneratedLoad(t *testing.T) {
	s := SetupE2ETest(t)

	dataset := generator.Generate(generator.Config{
		Users: 200, Doors: 100, Groups: 30, DoorGroups: 25, Seed: 3,
	})
	s.MustDo(t, http.MethodPost, "/api/import", dataset, http.StatusOK)

	for _, userID := range []int64{1, 50, 117, 200} {
		body := s.MustDo(t, http.MethodGet, listDoorsPath(userID), nil, http.StatusOK)
		doors := body["doors"].([]interface{})
		if int(body["door_count"].(float64)) != len(doors) {
			t.Fatalf("user %d: door_count disagrees with doors list", userID)
		}

		granted := map[float64]bool{}
		for _, d := range doors {
			granted[d.(map[string]interface{})["door_id"].(float64)] = true
		}
		for _, doorID := range []int64{1, 37, 100} {
			s.CheckAccess(t, userID, doorID, granted[float64(doorID)])
		}
	}
}

func listDoorsPath(userID int64) string {
	return fmt.Sprintf("/api/users/%d/doors", userID)
}
