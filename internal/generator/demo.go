package generator

import "github.com/zutrittswerk/portier/internal/entities"

func ptr(id int64) *int64 { return &id }

// DemoDataset returns the small office fixture used in walkthroughs.
//
// Entwicklung may open the common areas; Hardware-Entwicklung additionally
// holds the lab but is denied the server area, both directly and through
// the deny inherited from Entwicklung. IT-Administration holds the server
// area. So Max reaches the Kaffeeküche but not the Serverraum, Tom reaches
// the HW-Labor, and Lisa reaches the Serverraum.
func DemoDataset() *entities.Dataset {
	return &entities.Dataset{
		Principals: []*entities.Principal{
			{ID: 1, Name: "Max Mustermann", Email: "max@firma.de"},
			{ID: 2, Name: "Anna Beispiel", Email: "anna@firma.de"},
			{ID: 3, Name: "Tom Hardware", Email: "tom@firma.de"},
			{ID: 4, Name: "Lisa Admin", Email: "lisa@firma.de"},
		},
		Resources: []*entities.Resource{
			{ID: 1, Name: "Haupteingang", Location: "EG"},
			{ID: 2, Name: "Kaffeeküche", Location: "EG"},
			{ID: 5, Name: "HW-Labor", Location: "1. OG"},
			{ID: 10, Name: "Serverraum", Location: "UG"},
		},
		PrincipalGroups: []*entities.Group{
			{ID: 1, Name: "Mitarbeiter"},
			{ID: 2, Name: "Entwicklung", ParentID: ptr(1)},
			{ID: 3, Name: "Hardware-Entwicklung", ParentID: ptr(2)},
			{ID: 4, Name: "IT-Administration", ParentID: ptr(1)},
		},
		ResourceGroups: []*entities.Group{
			{ID: 1, Name: "Allgemein"},
			{ID: 2, Name: "Entwicklungsbereich"},
			{ID: 3, Name: "Serverbereich"},
			{ID: 4, Name: "HW-Labore", ParentID: ptr(2)},
		},
		Memberships: []entities.Membership{
			{PrincipalID: 1, GroupID: 2},
			{PrincipalID: 2, GroupID: 2},
			{PrincipalID: 3, GroupID: 3},
			{PrincipalID: 4, GroupID: 4},
		},
		Groupings: []entities.Grouping{
			{ResourceID: 1, ResourceGroupID: 1},
			{ResourceID: 2, ResourceGroupID: 1},
			{ResourceID: 5, ResourceGroupID: 4},
			{ResourceID: 10, ResourceGroupID: 3},
		},
		Allows: []entities.PermissionEdge{
			{GroupID: 2, ResourceGroupID: 1},
			{GroupID: 3, ResourceGroupID: 2},
			{GroupID: 4, ResourceGroupID: 1},
			{GroupID: 4, ResourceGroupID: 3},
		},
		Denies: []entities.PermissionEdge{
			{GroupID: 2, ResourceGroupID: 3},
			{GroupID: 3, ResourceGroupID: 3},
		},
	}
}
