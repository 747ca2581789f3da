package bracket

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs returns 0-indexed seed pairs by repeatedly folding [0,1] against its complement,
// so 8 gives {0,7},{3,4},{1,6},{2,5}.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// GenerateSingleElimination seeds the players and builds a knockout bracket. Missing opponents in round 1
// become completed byes that have already advanced their player.
func GenerateSingleElimination(tournamentID uuid.UUID, players []Player, opts Options) (*Structure, error) {
	if err := checkPlayerCount(len(players), MaxPlayers); err != nil {
		return nil, err
	}
	seeded, err := seedPlayers(players, opts.Seeder)
	if err != nil {
		return nil, err
	}

	s := newEliminationStructure(SingleElimination, len(seeded))
	s.Matches = buildWinnersBracket(tournamentID, seeded, s.BracketSize, opts.now())

	g := s.Graph()
	now := opts.now()
	g.markByes(now)
	if err := g.settleAll(now); err != nil {
		return nil, err
	}
	return s, nil
}

func newEliminationStructure(format Format, n int) *Structure {
	size := calcBracketSize(n)
	return &Structure{
		Format:      format,
		TotalRounds: int(math.Log2(float64(size))),
		BracketSize: size,
		PlayerCount: n,
		ByeCount:    size - n,
	}
}

// buildWinnersBracket lays out rounds 1..log2(size) with winner links and places seeded players in round 1.
func buildWinnersBracket(tournamentID uuid.UUID, seeded []Player, bracketSize int, now time.Time) []Match {
	totalRounds := int(math.Log2(float64(bracketSize)))
	matches := make([]Match, 0, bracketSize-1)

	for r := 1; r <= totalRounds; r++ {
		matchesInRound := bracketSize >> r
		for pos := 0; pos < matchesInRound; pos++ {
			m := newMatch(tournamentID, WinnersSide, r, pos, now)
			if r < totalRounds {
				m.FeedsInto = &Link{Bracket: WinnersSide, Round: r + 1, Position: pos / 2, Slot: slotFor(pos)}
			}
			matches = append(matches, m)
		}
	}

	for pos, pair := range generateRound1Pairs(bracketSize) {
		m := &matches[pos]
		if pair[0] < len(seeded) {
			id := seeded[pair[0]].ID
			m.PlayerAID = &id
		}
		if pair[1] < len(seeded) {
			id := seeded[pair[1]].ID
			m.PlayerBID = &id
		}
	}

	return matches
}
