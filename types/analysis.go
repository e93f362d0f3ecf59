package types

import "time"

// Trend classifies how a metric moved over the analyzed period.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// AnalysisReport is the full output of the analytics engine for one
// batch of dreams. Every field is well-defined for an empty input.
type AnalysisReport struct {
	TotalDreams     int              `json:"totalDreams"`
	DateRange       DateRange        `json:"dateRange"`
	MoodAnalysis    MoodAnalysis     `json:"moodAnalysis"`
	SleepAnalysis   SleepAnalysis    `json:"sleepAnalysis"`
	LucidAnalysis   LucidAnalysis    `json:"lucidAnalysis"`
	SymbolAnalysis  SymbolAnalysis   `json:"symbolAnalysis"`
	Correlations    Correlations     `json:"correlations"`
	MonthlyTrends   []MonthlyTrend   `json:"trends"`
	Recommendations []Recommendation `json:"recommendations"`
}

// DateRange spans the earliest and latest dream dates in the batch.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// MoodDistribution buckets mood scores into named bands.
type MoodDistribution struct {
	Nightmare int `json:"nightmare"`
	Negative  int `json:"negative"`
	Neutral   int `json:"neutral"`
	Positive  int `json:"positive"`
	Blissful  int `json:"blissful"`
}

type MoodAnalysis struct {
	Average      float64          `json:"average"`
	Distribution MoodDistribution `json:"distribution"`
	Trend        Trend            `json:"trend"`
}

type SleepAnalysis struct {
	AvgDuration float64 `json:"avgDuration"`
	AvgQuality  float64 `json:"avgQuality"`

	// OptimalRange counts dreams whose sleep duration fell in the
	// 7-9 hour band.
	OptimalRange int `json:"optimalRange"`

	// Disruptions maps each disruption label to its occurrence count.
	Disruptions map[string]int `json:"disruptions"`
}

type LucidAnalysis struct {
	Percentage          float64 `json:"percentage"`
	Trend               Trend   `json:"trend"`
	AvgMoodWhenLucid    float64 `json:"avgMoodWhenLucid"`
	AvgMoodWhenNonLucid float64 `json:"avgMoodWhenNonLucid"`
}

// SymbolFrequency is one entry of the most-common-symbols ranking.
type SymbolFrequency struct {
	Symbol     string  `json:"symbol"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SymbolMood is the average mood across dreams carrying a symbol.
type SymbolMood struct {
	Symbol  string  `json:"symbol"`
	AvgMood float64 `json:"avgMood"`
}

type SymbolAnalysis struct {
	TotalUnique           int               `json:"totalUnique"`
	MostCommon            []SymbolFrequency `json:"mostCommon"`
	SymbolMoodCorrelation []SymbolMood      `json:"symbolMoodCorrelation"`
}

type Correlations struct {
	SleepDurationVsMood float64 `json:"sleepDurationVsMood"`
	SleepQualityVsMood  float64 `json:"sleepQualityVsMood"`
}

// MonthlyTrend aggregates one calendar month (UTC year-month).
type MonthlyTrend struct {
	Month            string  `json:"month"`
	DreamCount       int     `json:"dreamCount"`
	LucidPercentage  float64 `json:"lucidPercentage"`
	AvgMood          float64 `json:"avgMood"`
	AvgSleepDuration float64 `json:"avgSleepDuration"`
}

// Recommendation is a rule-based suggestion surfaced on the dashboard.
// Priority is "high", "medium" or "low" and drives styling only.
type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}
