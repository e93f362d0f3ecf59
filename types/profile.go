package types

import "time"

// DreamStats holds the aggregate counters shown on a user's profile.
type DreamStats struct {
	TotalDreams    int        `json:"total_dreams"`
	LucidDreams    int        `json:"lucid_dreams"`
	AvgMood        *float64   `json:"avg_mood"`
	FirstDreamDate *time.Time `json:"first_dream_date"`
	LastDreamDate  *time.Time `json:"last_dream_date"`
}

// MonthCount is a dream count for one calendar month.
type MonthCount struct {
	Month      time.Time `json:"month"`
	DreamCount int       `json:"dream_count"`
}

// TopSymbol is a symbol ranked by how often a user dreamed it.
type TopSymbol struct {
	Name      string `json:"name"`
	Frequency int    `json:"frequency"`
}

// Profile is the public view of a user plus their dream statistics.
type Profile struct {
	User           User         `json:"user"`
	Statistics     DreamStats   `json:"statistics"`
	TopSymbols     []TopSymbol  `json:"topSymbols"`
	DreamFrequency []MonthCount `json:"dreamFrequency"`
	RecentDreams   []Dream      `json:"recentDreams"`
}
