package entities

import "fmt"

// Principal represents a user known to the access control system.
// Identity fields are immutable after creation.
type Principal struct {
	ID    int64  `json:"id"`    // Unique principal id
	Name  string `json:"name"`  // Display name (e.g., "Max Mustermann")
	Email string `json:"email"` // Contact attribute
}

// Validate checks if the principal is well-formed
func (p *Principal) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: principal id must be positive", ErrInvalidInput)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: principal name is required", ErrInvalidInput)
	}
	return nil
}
