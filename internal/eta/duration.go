// Package eta predicts match durations and simulates table occupancy to estimate start times.
package eta

import (
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
)

// MinHistorySamples is how many completed matches a tournament needs before its own average replaces the
// race-to table.
const MinHistorySamples = 3

// Minutes per race-to value for an average pair of players.
var raceToMinutes = map[int]float64{
	1: 8, 2: 15, 3: 22, 4: 30, 5: 38,
	6: 45, 7: 52, 8: 60, 9: 68, 10: 75,
	11: 83, 12: 90, 13: 98, 14: 105, 15: 113,
}

var skillMultipliers = map[bracket.SkillLevel]float64{
	bracket.Beginner:     1.3,
	bracket.Intermediate: 1.0,
	bracket.Advanced:     0.9,
	bracket.Expert:       0.8,
}

// EstimateMatchDuration predicts how long a match takes. A non-zero historical average wins over the race-to
// table; the result is scaled by the average skill multiplier of whichever players have a known level.
func EstimateMatchDuration(raceTo int, skillA, skillB bracket.SkillLevel, historical time.Duration) time.Duration {
	base := historical
	if base <= 0 {
		base = raceToDuration(raceTo)
	}
	return time.Duration(float64(base) * skillMultiplier(skillA, skillB))
}

func raceToDuration(raceTo int) time.Duration {
	raceTo = max(raceTo, 1)
	minutes, ok := raceToMinutes[raceTo]
	if !ok {
		minutes = float64(raceTo * 5)
	}
	return time.Duration(minutes * float64(time.Minute))
}

func skillMultiplier(levels ...bracket.SkillLevel) float64 {
	sum, n := 0.0, 0
	for _, l := range levels {
		if m, ok := skillMultipliers[l]; ok {
			sum += m
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// HistoricalAverage is the mean of durations, or false when there are fewer than minSamples of them.
func HistoricalAverage(durations []time.Duration, minSamples int) (time.Duration, bool) {
	if len(durations) == 0 || len(durations) < minSamples {
		return 0, false
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations)), true
}

// CompletedDurations collects started-to-completed spans of finished matches, skipping byes.
func CompletedDurations(matches []bracket.Match) []time.Duration {
	var out []time.Duration
	for _, m := range matches {
		if m.IsBye || m.StartedAt == nil || m.CompletedAt == nil {
			continue
		}
		if d := m.CompletedAt.Sub(*m.StartedAt); d > 0 {
			out = append(out, d)
		}
	}
	return out
}
