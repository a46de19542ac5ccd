package entities

import "fmt"

// Resource represents a protected resource (a door, in the original deployment).
type Resource struct {
	ID       int64  `json:"id"`       // Unique resource id
	Name     string `json:"name"`     // Display name (e.g., "Serverraum")
	Location string `json:"location"` // Physical location attribute
}

// Validate checks if the resource is well-formed
func (r *Resource) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: resource id must be positive", ErrInvalidInput)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: resource name is required", ErrInvalidInput)
	}
	return nil
}
