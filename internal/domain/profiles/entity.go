package profiles

import "time"

// Profile is the subset of a user account the insight workflow reads and writes.
type Profile struct {
	ID              string    `json:"id"`
	Category        string    `json:"category,omitempty"`
	ExperienceYears int       `json:"experience"`
	Bio             string    `json:"bio,omitempty"`
	Skills          []string  `json:"skills"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Onboarded is true once a category has been attached.
func (p *Profile) Onboarded() bool {
	return p != nil && p.Category != ""
}

// Fields are the values written during onboarding
type Fields struct {
	Category        string
	ExperienceYears int
	Bio             string
	Skills          []string
}
