package types

// UserPreferences holds the user's search criteria. Pure client-local state:
// no server copy exists, it is created with defaults on first load and
// persisted on every change.
type UserPreferences struct {
	Keywords  string `json:"keywords"`
	Locations string `json:"locations"`
	MinSalary *int   `json:"minSalary,omitempty"`
	RoleTags  string `json:"roleTags,omitempty"`
	UserID    string `json:"userId"`
}

// DefaultPreferences returns the starter preferences for a user who has
// never saved any.
func DefaultPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		Keywords:  "react, typescript, node",
		Locations: "Remote, Indianapolis, Bengaluru, Delhi NCR",
		RoleTags:  "frontend, tech lead, engineering manager",
		UserID:    userID,
	}
}
