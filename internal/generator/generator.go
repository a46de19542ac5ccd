// Package generator produces synthetic datasets for load testing and a
// small fixed demo dataset for walkthroughs.
package generator

import (
	"fmt"
	"math/rand"

	"github.com/zutrittswerk/portier/internal/entities"
)

// Config sizes a synthetic dataset.
type Config struct {
	Users      int
	Doors      int
	Groups     int
	DoorGroups int
	Seed       int64
}

// DefaultConfig matches the scale the original deployment was load tested
// at: 10k users, 1k doors, 150 user groups, 120 door groups.
func DefaultConfig() Config {
	return Config{
		Users:      10000,
		Doors:      1000,
		Groups:     150,
		DoorGroups: 120,
		Seed:       1,
	}
}

var departments = []string{
	"Engineering", "Sales", "Marketing", "HR", "Finance",
	"Operations", "Legal", "IT", "Support", "Management",
}

var buildings = []string{"Building-A", "Building-B", "Building-C", "Building-D", "Building-E"}

var firstNames = []string{"Max", "Anna", "Tom", "Lisa", "Peter", "Sarah", "Mike", "Emma", "John", "Maria"}

var lastNames = []string{"Mueller", "Schmidt", "Weber", "Fischer", "Meyer", "Wagner", "Becker", "Schulz", "Koch", "Richter"}

var doorTypes = []string{"Main", "Side", "Emergency", "Service", "Lab", "Office", "Storage", "Server"}

var floorAreas = []string{"Office", "Lab", "Storage", "Meeting", "Common"}

// Generate builds a synthetic dataset: departmental user groups two to
// three levels deep, building/floor/area door groups, users spread over
// 1-3 groups each, doors in 1-2 door groups, 3-10 allow edges per group
// and deny edges on roughly a tenth of the groups. The same seed always
// produces the same dataset.
func Generate(cfg Config) *entities.Dataset {
	rng := rand.New(rand.NewSource(cfg.Seed))
	d := &entities.Dataset{}

	generateUserGroups(cfg, d)
	generateDoorGroups(cfg, d)

	for i := 1; i <= cfg.Users; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		d.Principals = append(d.Principals, &entities.Principal{
			ID:    int64(i),
			Name:  fmt.Sprintf("%s %s %d", first, last, i),
			Email: fmt.Sprintf("user%d@company.com", i),
		})
	}

	for i := 1; i <= cfg.Doors; i++ {
		d.Resources = append(d.Resources, &entities.Resource{
			ID:       int64(i),
			Name:     fmt.Sprintf("%s-Door-%d", doorTypes[rng.Intn(len(doorTypes))], i),
			Location: fmt.Sprintf("Location-%d", i%100),
		})
	}

	groupIDs := groupIDList(d.PrincipalGroups)
	dgroupIDs := groupIDList(d.ResourceGroups)

	// Each user in 1-3 groups
	seenMemberships := map[[2]int64]bool{}
	for _, p := range d.Principals {
		for _, gid := range sampleIDs(rng, groupIDs, 1+rng.Intn(3)) {
			key := [2]int64{p.ID, gid}
			if seenMemberships[key] {
				continue
			}
			seenMemberships[key] = true
			d.Memberships = append(d.Memberships, entities.Membership{PrincipalID: p.ID, GroupID: gid})
		}
	}

	// Each door in 1-2 door groups
	seenGroupings := map[[2]int64]bool{}
	for _, door := range d.Resources {
		for _, dgid := range sampleIDs(rng, dgroupIDs, 1+rng.Intn(2)) {
			key := [2]int64{door.ID, dgid}
			if seenGroupings[key] {
				continue
			}
			seenGroupings[key] = true
			d.Groupings = append(d.Groupings, entities.Grouping{ResourceID: door.ID, ResourceGroupID: dgid})
		}
	}

	// Each group allows 3-10 door groups
	seenAllows := map[[2]int64]bool{}
	for _, gid := range groupIDs {
		for _, dgid := range sampleIDs(rng, dgroupIDs, 3+rng.Intn(8)) {
			key := [2]int64{gid, dgid}
			if seenAllows[key] {
				continue
			}
			seenAllows[key] = true
			d.Allows = append(d.Allows, entities.PermissionEdge{GroupID: gid, ResourceGroupID: dgid})
		}
	}

	// Denies are sparse: roughly a tenth of the groups carry 1-3 each
	seenDenies := map[[2]int64]bool{}
	for _, gid := range sampleIDs(rng, groupIDs, len(groupIDs)/10) {
		for _, dgid := range sampleIDs(rng, dgroupIDs, 1+rng.Intn(3)) {
			key := [2]int64{gid, dgid}
			if seenDenies[key] {
				continue
			}
			seenDenies[key] = true
			d.Denies = append(d.Denies, entities.PermissionEdge{GroupID: gid, ResourceGroupID: dgid})
		}
	}

	return d
}

func generateUserGroups(cfg Config, d *entities.Dataset) {
	id := int64(1)
	add := func(name string, parent *int64) int64 {
		d.PrincipalGroups = append(d.PrincipalGroups, &entities.Group{ID: id, Name: name, ParentID: parent})
		id++
		return id - 1
	}

	for _, dept := range departments {
		deptID := add(dept, nil)
		for i := 1; int(id) <= cfg.Groups; i++ {
			teamName := fmt.Sprintf("%s-Team-%d", dept, i)
			teamID := add(teamName, &deptID)
			if i%3 == 0 && int(id) <= cfg.Groups {
				add(fmt.Sprintf("%s-Unit-1", teamName), &teamID)
			}
			if i >= 12 {
				break
			}
		}
		if int(id) > cfg.Groups {
			return
		}
	}
}

func generateDoorGroups(cfg Config, d *entities.Dataset) {
	id := int64(1)
	add := func(name string, parent *int64) int64 {
		d.ResourceGroups = append(d.ResourceGroups, &entities.Group{ID: id, Name: name, ParentID: parent})
		id++
		return id - 1
	}

	for _, building := range buildings {
		buildingID := add(building, nil)
		for floor := 1; floor <= 5 && int(id) <= cfg.DoorGroups; floor++ {
			floorName := fmt.Sprintf("%s-Floor-%d", building, floor)
			floorID := add(floorName, &buildingID)
			for _, area := range floorAreas {
				if int(id) > cfg.DoorGroups {
					break
				}
				add(fmt.Sprintf("%s-%s", floorName, area), &floorID)
			}
		}
		if int(id) > cfg.DoorGroups {
			return
		}
	}
}

func groupIDList(groups []*entities.Group) []int64 {
	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}

// sampleIDs picks n distinct ids; n is clamped to the population size.
func sampleIDs(rng *rand.Rand, ids []int64, n int) []int64 {
	if n > len(ids) {
		n = len(ids)
	}
	perm := rng.Perm(len(ids))
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = ids[perm[i]]
	}
	return out
}
