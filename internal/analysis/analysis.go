// Package analysis derives dashboard statistics from a batch of dreams.
// It is pure computation: no I/O, no state, a single pass per metric.
// Every metric excludes records missing the relevant field from its
// denominator instead of substituting zeros.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/siamesedream/apiserver/types"
)

// trendThreshold is the minimum half-to-half mean difference that counts
// as movement; anything at or below it classifies as stable.
const trendThreshold = 0.1

// Analyze computes the full report for one batch of dreams. An empty
// batch yields a zero-valued report, never an error or NaN.
func Analyze(dreams []types.Dream) types.AnalysisReport {
	report := types.AnalysisReport{
		MoodAnalysis:    types.MoodAnalysis{Trend: types.TrendStable},
		SleepAnalysis:   types.SleepAnalysis{Disruptions: map[string]int{}},
		LucidAnalysis:   types.LucidAnalysis{Trend: types.TrendStable},
		SymbolAnalysis:  types.SymbolAnalysis{MostCommon: []types.SymbolFrequency{}, SymbolMoodCorrelation: []types.SymbolMood{}},
		MonthlyTrends:   []types.MonthlyTrend{},
		Recommendations: []types.Recommendation{},
	}
	if len(dreams) == 0 {
		return report
	}

	report.TotalDreams = len(dreams)
	report.DateRange = dateRange(dreams)
	report.MoodAnalysis = moodAnalysis(dreams)
	report.SleepAnalysis = sleepAnalysis(dreams)
	report.LucidAnalysis = lucidAnalysis(dreams)
	report.SymbolAnalysis = symbolAnalysis(dreams)
	report.Correlations = correlations(dreams)
	report.MonthlyTrends = monthlyTrends(dreams)
	report.Recommendations = recommendations(report)
	return report
}

func dateRange(dreams []types.Dream) types.DateRange {
	start := dreams[0].DreamDate
	end := dreams[0].DreamDate
	for _, d := range dreams[1:] {
		if d.DreamDate.Before(start) {
			start = d.DreamDate
		}
		if d.DreamDate.After(end) {
			end = d.DreamDate
		}
	}
	return types.DateRange{Start: &start, End: &end}
}

func moodAnalysis(dreams []types.Dream) types.MoodAnalysis {
	var analysis types.MoodAnalysis
	var sum, count int
	var points []point

	for _, d := range dreams {
		if d.MoodScore == nil {
			continue
		}
		score := *d.MoodScore
		sum += score
		count++
		points = append(points, point{date: d.DreamDate, value: float64(score)})

		switch {
		case score <= 3:
			analysis.Distribution.Nightmare++
		case score <= 5:
			analysis.Distribution.Negative++
		case score <= 7:
			analysis.Distribution.Neutral++
		case score <= 9:
			analysis.Distribution.Positive++
		default:
			analysis.Distribution.Blissful++
		}
	}

	if count > 0 {
		analysis.Average = float64(sum) / float64(count)
	}
	analysis.Trend = classifyTrend(points)
	return analysis
}

func sleepAnalysis(dreams []types.Dream) types.SleepAnalysis {
	analysis := types.SleepAnalysis{Disruptions: map[string]int{}}
	var durationSum float64
	var durationCount int
	var qualitySum, qualityCount int

	for _, d := range dreams {
		if d.SleepDuration != nil {
			duration := *d.SleepDuration
			durationSum += duration
			durationCount++
			if duration >= 7 && duration <= 9 {
				analysis.OptimalRange++
			}
		}
		if d.SleepQuality != nil {
			qualitySum += *d.SleepQuality
			qualityCount++
		}
		for _, label := range d.SleepDisruptions {
			analysis.Disruptions[label]++
		}
	}

	if durationCount > 0 {
		analysis.AvgDuration = durationSum / float64(durationCount)
	}
	if qualityCount > 0 {
		analysis.AvgQuality = float64(qualitySum) / float64(qualityCount)
	}
	return analysis
}

func lucidAnalysis(dreams []types.Dream) types.LucidAnalysis {
	var analysis types.LucidAnalysis
	var lucidCount int
	var lucidMoodSum, lucidMoodCount int
	var nonLucidMoodSum, nonLucidMoodCount int
	points := make([]point, 0, len(dreams))

	for _, d := range dreams {
		indicator := 0.0
		if d.IsLucid {
			indicator = 1
			lucidCount++
			if d.MoodScore != nil {
				lucidMoodSum += *d.MoodScore
				lucidMoodCount++
			}
		} else if d.MoodScore != nil {
			nonLucidMoodSum += *d.MoodScore
			nonLucidMoodCount++
		}
		points = append(points, point{date: d.DreamDate, value: indicator})
	}

	analysis.Percentage = float64(lucidCount) / float64(len(dreams)) * 100
	analysis.Trend = classifyTrend(points)
	if lucidMoodCount > 0 {
		analysis.AvgMoodWhenLucid = float64(lucidMoodSum) / float64(lucidMoodCount)
	}
	if nonLucidMoodCount > 0 {
		analysis.AvgMoodWhenNonLucid = float64(nonLucidMoodSum) / float64(nonLucidMoodCount)
	}
	return analysis
}

func symbolAnalysis(dreams []types.Dream) types.SymbolAnalysis {
	counts := map[string]int{}
	moodSums := map[string]int{}
	moodCounts := map[string]int{}

	for _, d := range dreams {
		for _, symbol := range d.Symbols {
			counts[symbol]++
			if d.MoodScore != nil {
				moodSums[symbol] += *d.MoodScore
				moodCounts[symbol]++
			}
		}
	}

	mostCommon := make([]types.SymbolFrequency, 0, len(counts))
	for symbol, count := range counts {
		mostCommon = append(mostCommon, types.SymbolFrequency{
			Symbol:     symbol,
			Count:      count,
			Percentage: float64(count) / float64(len(dreams)) * 100,
		})
	}
	sort.Slice(mostCommon, func(i, j int) bool {
		if mostCommon[i].Count != mostCommon[j].Count {
			return mostCommon[i].Count > mostCommon[j].Count
		}
		return mostCommon[i].Symbol < mostCommon[j].Symbol
	})
	if len(mostCommon) > 10 {
		mostCommon = mostCommon[:10]
	}

	moods := make([]types.SymbolMood, 0, len(moodCounts))
	for symbol, count := range moodCounts {
		moods = append(moods, types.SymbolMood{
			Symbol:  symbol,
			AvgMood: float64(moodSums[symbol]) / float64(count),
		})
	}
	sort.Slice(moods, func(i, j int) bool {
		if moods[i].AvgMood != moods[j].AvgMood {
			return moods[i].AvgMood > moods[j].AvgMood
		}
		return moods[i].Symbol < moods[j].Symbol
	})
	if len(moods) > 5 {
		moods = moods[:5]
	}

	return types.SymbolAnalysis{
		TotalUnique:           len(counts),
		MostCommon:            mostCommon,
		SymbolMoodCorrelation: moods,
	}
}

func correlations(dreams []types.Dream) types.Correlations {
	var durations, durationMoods []float64
	var qualities, qualityMoods []float64

	for _, d := range dreams {
		if d.MoodScore == nil {
			continue
		}
		mood := float64(*d.MoodScore)
		if d.SleepDuration != nil {
			durations = append(durations, *d.SleepDuration)
			durationMoods = append(durationMoods, mood)
		}
		if d.SleepQuality != nil {
			qualities = append(qualities, float64(*d.SleepQuality))
			qualityMoods = append(qualityMoods, mood)
		}
	}

	return types.Correlations{
		SleepDurationVsMood: PearsonCorrelation(durations, durationMoods),
		SleepQualityVsMood:  PearsonCorrelation(qualities, qualityMoods),
	}
}

// PearsonCorrelation computes the standard Pearson coefficient over two
// parallel series. It returns exactly 0 when fewer than 2 pairs exist or
// when either series has zero variance, so downstream threshold checks
// never see NaN.
func PearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func monthlyTrends(dreams []types.Dream) []types.MonthlyTrend {
	type bucket struct {
		count         int
		lucidCount    int
		moodSum       int
		moodCount     int
		durationSum   float64
		durationCount int
	}
	buckets := map[string]*bucket{}

	for _, d := range dreams {
		key := d.DreamDate.UTC().Format("2006-01")
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		if d.IsLucid {
			b.lucidCount++
		}
		if d.MoodScore != nil {
			b.moodSum += *d.MoodScore
			b.moodCount++
		}
		if d.SleepDuration != nil {
			b.durationSum += *d.SleepDuration
			b.durationCount++
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > 12 {
		keys = keys[len(keys)-12:]
	}

	trends := make([]types.MonthlyTrend, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		trend := types.MonthlyTrend{
			Month:           key,
			DreamCount:      b.count,
			LucidPercentage: float64(b.lucidCount) / float64(b.count) * 100,
		}
		if b.moodCount > 0 {
			trend.AvgMood = float64(b.moodSum) / float64(b.moodCount)
		}
		if b.durationCount > 0 {
			trend.AvgSleepDuration = b.durationSum / float64(b.durationCount)
		}
		trends = append(trends, trend)
	}
	return trends
}

type point struct {
	date  time.Time
	value float64
}

// classifyTrend compares the mean of the earlier half of the series with
// the mean of the later half. On odd counts the earlier half takes the
// extra element. Fewer than two points is always stable.
func classifyTrend(points []point) types.Trend {
	if len(points) < 2 {
		return types.TrendStable
	}

	sorted := make([]point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].date.Before(sorted[j].date)
	})

	split := (len(sorted) + 1) / 2
	firstMean := meanOf(sorted[:split])
	secondMean := meanOf(sorted[split:])

	diff := secondMean - firstMean
	if math.Abs(diff) <= trendThreshold {
		return types.TrendStable
	}
	if diff > 0 {
		return types.TrendImproving
	}
	return types.TrendDeclining
}

func meanOf(points []point) float64 {
	var sum float64
	for _, p := range points {
		sum += p.value
	}
	return sum / float64(len(points))
}

func recommendations(report types.AnalysisReport) []types.Recommendation {
	recs := []types.Recommendation{}

	if report.MoodAnalysis.Average < 6 {
		recs = append(recs, types.Recommendation{
			Type:        "mood",
			Title:       "Improve Dream Mood",
			Description: "Your average dream mood is below neutral. Consider dream incubation techniques or keeping a gratitude journal before bed.",
			Priority:    "high",
		})
	}
	if report.SleepAnalysis.AvgDuration < 7 {
		recs = append(recs, types.Recommendation{
			Type:        "sleep",
			Title:       "Increase Sleep Duration",
			Description: fmt.Sprintf("You're averaging %.1f hours of sleep. Aim for 7-9 hours for better dream recall and mood.", report.SleepAnalysis.AvgDuration),
			Priority:    "high",
		})
	}
	if report.SleepAnalysis.AvgQuality < 6 {
		recs = append(recs, types.Recommendation{
			Type:        "sleep",
			Title:       "Improve Sleep Quality",
			Description: "Your sleep quality could be improved. Consider a consistent bedtime routine and limiting screen time before bed.",
			Priority:    "medium",
		})
	}
	if report.LucidAnalysis.Percentage < 10 {
		recs = append(recs, types.Recommendation{
			Type:        "lucid",
			Title:       "Enhance Lucid Dreaming",
			Description: "Try reality checks throughout the day and keep a detailed dream journal to increase lucid dream frequency.",
			Priority:    "low",
		})
	}
	if report.Correlations.SleepQualityVsMood > 0.3 {
		recs = append(recs, types.Recommendation{
			Type:        "insight",
			Title:       "Sleep Quality Affects Your Dreams",
			Description: "Your data shows better sleep quality correlates with more positive dreams. Prioritize sleep hygiene.",
			Priority:    "medium",
		})
	}

	return recs
}
