package prefs

import (
	"context"
	"fmt"
)

const (
	// DefaultTimezone is used until the user picks one.
	DefaultTimezone = "UTC"
	// DefaultSinceHour scopes queries to mail received after 09:00.
	DefaultSinceHour = 9
)

// Preference holds the per-user query parameters.
type Preference struct {
	Timezone  string `json:"timezone"`
	SinceHour int    `json:"since_hour"`
}

// Defaults returns the preference applied to users who never saved one.
func Defaults() Preference {
	return Preference{Timezone: DefaultTimezone, SinceHour: DefaultSinceHour}
}

// Validate checks that the preference values are usable in a query.
func (p Preference) Validate() error {
	if p.Timezone == "" {
		return fmt.Errorf("timezone cannot be empty")
	}
	if p.SinceHour < 0 || p.SinceHour > 23 {
		return fmt.Errorf("since_hour must be between 0 and 23, got %d", p.SinceHour)
	}
	return nil
}

// Store persists preferences keyed by user id. Get returns Defaults()
// for users without a saved preference.
type Store interface {
	Get(ctx context.Context, userID string) (Preference, error)
	Put(ctx context.Context, userID string, pref Preference) error
}
