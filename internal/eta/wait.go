package eta

import (
	"slices"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/google/uuid"
)

// WaitTime is how long a player waits for their next match and where that match sits in the queue.
type WaitTime struct {
	MatchID       uuid.UUID `json:"matchId"`
	Minutes       int       `json:"minutes"`
	QueuePosition int       `json:"queuePosition"`
	Start         time.Time `json:"start"`
}

// PlayerWaitTime finds the player's next unplayed match among etas. Queue positions are 1-based. Matches in
// play have no ETA, so a player at a table gets the match after the current one; false means no waiting
// match has the player yet.
func PlayerWaitTime(etas []MatchETA, matches []bracket.Match, playerID uuid.UUID, now time.Time) (WaitTime, bool) {
	byID := make(map[uuid.UUID]*bracket.Match, len(matches))
	for i := range matches {
		byID[matches[i].ID] = &matches[i]
	}

	for i, e := range etas {
		m, ok := byID[e.MatchID]
		if !ok || !m.HasPlayer(playerID) {
			continue
		}
		wait := max(e.Start.Sub(now), 0)
		return WaitTime{
			MatchID:       e.MatchID,
			Minutes:       int(wait.Round(time.Minute) / time.Minute),
			QueuePosition: i + 1,
			Start:         e.Start,
		}, true
	}
	return WaitTime{}, false
}

func sortByFreeAt(tables []TableFreeAt) {
	slices.SortStableFunc(tables, func(a, b TableFreeAt) int {
		return a.FreeAt.Compare(b.FreeAt)
	})
}
