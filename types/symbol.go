package types

// Symbol is a free-text tag shared across all dreams and users,
// deduplicated globally by exact name.
type Symbol struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// SymbolCount pairs a symbol name with how many dreams carry it.
type SymbolCount struct {
	Name       string `json:"name"`
	DreamCount int    `json:"dream_count"`
}

// SymbolTimelineEntry is one month of usage for one symbol.
type SymbolTimelineEntry struct {
	Symbol     string `json:"symbol"`
	Month      string `json:"month"`
	UsageCount int    `json:"usage_count"`
}
