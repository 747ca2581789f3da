// Package scheduler orders waiting matches and pairs the playable ones with free tables. Pairing is
// greedy: the best match takes the soonest free table, which is not a globally optimal schedule.
package scheduler

import (
	"slices"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/google/uuid"
)

const (
	basePriority  = 1000
	roundWeight   = 10
	eligibleBonus = 100
)

type Entry struct {
	Match     bracket.Match `json:"match"`
	Priority  int           `json:"priority"`
	Eligible  bool          `json:"eligible"`
	DependsOn []uuid.UUID   `json:"dependsOn"`
	// BusyPlayers are this match's players currently at another table.
	BusyPlayers []uuid.UUID `json:"busyPlayers"`
}

// Priority scores a match: earlier rounds first, playable matches well ahead of the rest.
func Priority(round int, eligible bool) int {
	p := basePriority - round*roundWeight
	if eligible {
		p += eligibleBonus
	}
	return p
}

// BuildQueue ranks every pending or ready match that needs a table; byes settle on their own and are left
// out. A match is eligible when it is ready, both players are
// known, every match feeding it is decided and neither player is at another table. Ties go to the lower
// position.
func BuildQueue(matches []bracket.Match) []Entry {
	g := bracket.NewGraph(matches)
	busy := busyPlayers(matches)

	var queue []Entry
	for _, m := range matches {
		if m.IsBye || (m.State != matchstate.Pending && m.State != matchstate.Ready) {
			continue
		}

		e := Entry{Match: m}
		depsDone := true
		for _, k := range g.Dependencies(m.Key()) {
			dep, _ := g.Lookup(k)
			e.DependsOn = append(e.DependsOn, dep.ID)
			if !matchstate.IsTerminal(dep.State) {
				depsDone = false
			}
		}
		for _, id := range []*uuid.UUID{m.PlayerAID, m.PlayerBID} {
			if id != nil {
				if other, ok := busy[*id]; ok && other != m.ID {
					e.BusyPlayers = append(e.BusyPlayers, *id)
				}
			}
		}

		e.Eligible = m.State == matchstate.Ready && m.HasPlayers() && depsDone && len(e.BusyPlayers) == 0
		e.Priority = Priority(m.Round, e.Eligible)
		queue = append(queue, e)
	}

	slices.SortStableFunc(queue, func(a, b Entry) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return a.Match.Position - b.Match.Position
	})
	return queue
}

// busyPlayers maps each player at a table to the match they are in.
func busyPlayers(matches []bracket.Match) map[uuid.UUID]uuid.UUID {
	busy := map[uuid.UUID]uuid.UUID{}
	for _, m := range matches {
		switch m.State {
		case matchstate.Assigned, matchstate.Active, matchstate.Paused:
		default:
			continue
		}
		for _, id := range []*uuid.UUID{m.PlayerAID, m.PlayerBID} {
			if id != nil {
				busy[*id] = m.ID
			}
		}
	}
	return busy
}

// Ordered returns the matches already at tables, then the queued matches in priority order, then the
// rest, which is the order ETA simulation expects. Every match is kept so dependencies still resolve.
func Ordered(queue []Entry, matches []bracket.Match) []bracket.Match {
	out := make([]bracket.Match, 0, len(matches))
	seen := make(map[uuid.UUID]bool, len(matches))
	for _, m := range matches {
		if m.State == matchstate.Assigned || m.State == matchstate.Active || m.State == matchstate.Paused {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	for _, e := range queue {
		if !seen[e.Match.ID] {
			seen[e.Match.ID] = true
			out = append(out, e.Match)
		}
	}
	for _, m := range matches {
		if !seen[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// Slot is a table and when it frees up.
type Slot struct {
	TableID uuid.UUID
	FreeAt  time.Time
}

type Assignment struct {
	MatchID  uuid.UUID
	TableID  uuid.UUID
	Revision int
}

// Pair matches eligible entries with tables one to one, best entry to soonest free table. Entries sharing a
// player with an already paired entry wait for the next round of pairing. Leftover entries stay queued and
// leftover tables stay free.
func Pair(queue []Entry, tables []Slot) []Assignment {
	free := slices.Clone(tables)
	slices.SortStableFunc(free, func(a, b Slot) int {
		return a.FreeAt.Compare(b.FreeAt)
	})

	var out []Assignment
	taken := map[uuid.UUID]bool{}
	for _, e := range queue {
		if len(out) == len(free) {
			break
		}
		if !e.Eligible {
			continue
		}
		a, b := *e.Match.PlayerAID, *e.Match.PlayerBID
		if taken[a] || taken[b] {
			continue
		}
		taken[a], taken[b] = true, true
		out = append(out, Assignment{MatchID: e.Match.ID, TableID: free[len(out)].TableID, Revision: e.Match.Revision})
	}
	return out
}
