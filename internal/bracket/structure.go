package bracket

import (
	"sort"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/utils"
	"github.com/google/uuid"
)

const (
	MinPlayers = 2
	MaxPlayers = 128
)

// Structure is the pure result of bracket generation. Persisting it is the caller's concern.
type Structure struct {
	Format      Format
	TotalRounds int
	BracketSize int
	PlayerCount int
	ByeCount    int
	Matches     []Match
}

func (s *Structure) Graph() *Graph {
	return NewGraph(s.Matches)
}

func (s *Structure) Lookup(k Key) (*Match, bool) {
	return s.Graph().Lookup(k)
}

func (s *Structure) Round(side BracketSide, round int) []Match {
	var out []Match
	for _, m := range s.Matches {
		if m.Bracket == side && m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

// Seeder orders players and assigns seeds 1..N in output order.
type Seeder func([]Player) ([]Player, error)

// Options tune generation. Now stamps generated matches; zero means time.Now().
type Options struct {
	Seeder             Seeder
	IncludeConsolation bool
	Now                time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now
}

func seedPlayers(players []Player, seeder Seeder) ([]Player, error) {
	if seeder != nil {
		return seeder(players)
	}
	return existingOrder(players), nil
}

// existingOrder keeps current seeds when every player has one, otherwise the input order.
func existingOrder(players []Player) []Player {
	out := make([]Player, len(players))
	copy(out, players)

	allSeeded := true
	for _, p := range out {
		if p.Seed == nil {
			allSeeded = false
			break
		}
	}
	if allSeeded {
		sort.SliceStable(out, func(i, j int) bool { return *out[i].Seed < *out[j].Seed })
	}
	for i := range out {
		out[i].Seed = utils.Ptr(i + 1)
	}
	return out
}

func checkPlayerCount(n int, max int) error {
	if n < MinPlayers {
		return apperr.Validation("players", "at least %d players are required, got %d", MinPlayers, n)
	}
	if max > 0 && n > max {
		return apperr.Validation("players", "at most %d players are supported, got %d", max, n)
	}
	return nil
}

func newMatch(tournamentID uuid.UUID, side BracketSide, round, position int, now time.Time) Match {
	k := Key{Bracket: side, Round: round, Position: position}
	return Match{
		ID:           MatchID(tournamentID, k),
		TournamentID: tournamentID,
		Bracket:      side,
		Round:        round,
		Position:     position,
		State:        matchstate.Pending,
		Revision:     1,
		CreatedAt:    now,
	}
}
