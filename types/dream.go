package types

import "time"

// Dream is a single journal entry with its sleep metadata and symbol tags.
// Optional metrics are pointers so that an absent value survives the trip
// through JSON and SQL as NULL rather than a zero.
type Dream struct {
	ID     int `json:"id" db:"id"`
	UserID int `json:"user_id" db:"user_id"`

	// Title is the short summary line shown in lists. The column is named
	// "summary"; the wire name "title" is kept from the original API.
	Title   string `json:"title" db:"summary"`
	Content string `json:"content" db:"content"`

	// DreamDate is the calendar date the dream occurred on.
	DreamDate time.Time `json:"dream_date" db:"dream_date"`

	IsLucid bool `json:"is_lucid" db:"is_lucid"`

	// MoodScore rates the dream's emotional tone from 1 to 10.
	MoodScore *int `json:"mood_score" db:"mood_score"`

	// SleepDuration is hours slept the night of the dream.
	SleepDuration *float64 `json:"sleep_duration" db:"sleep_duration"`

	// SleepQuality rates the night's sleep from 1 to 10.
	SleepQuality *int `json:"sleep_quality" db:"sleep_quality"`

	// Bedtime is a free-form time-of-day label, e.g. "23:30".
	Bedtime *string `json:"bedtime" db:"bedtime"`

	// SleepDisruptions holds zero or more free-text disruption labels.
	SleepDisruptions []string `json:"sleep_disruptions" db:"sleep_disruptions"`

	// Symbols is the aggregated list of tag names linked to this dream.
	Symbols []string `json:"symbols" db:"symbols"`

	// Username is the owner's name; populated only on feed rows.
	Username string `json:"username,omitempty" db:"username"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
