package bracket

import (
	"github.com/google/uuid"
)

// GenerateRoundRobin pairs every player with every other exactly once using the circle method. An odd
// field gets a phantom seat; whoever draws it sits the round out and no match is created for it.
func GenerateRoundRobin(tournamentID uuid.UUID, players []Player, opts Options) (*Structure, error) {
	if err := checkPlayerCount(len(players), 0); err != nil {
		return nil, err
	}
	seeded, err := seedPlayers(players, opts.Seeder)
	if err != nil {
		return nil, err
	}

	const phantom = -1
	n := len(seeded)
	seats := make([]int, 0, n+1)
	for i := range seeded {
		seats = append(seats, i)
	}
	if n%2 != 0 {
		seats = append(seats, phantom)
	}
	m := len(seats)
	now := opts.now()

	s := &Structure{
		Format:      RoundRobin,
		TotalRounds: m - 1,
		BracketSize: m,
		PlayerCount: n,
		ByeCount:    m - n,
		Matches:     make([]Match, 0, n*(n-1)/2),
	}

	for r := 1; r <= m-1; r++ {
		pos := 0
		for i := 0; i < m/2; i++ {
			a, b := seats[i], seats[m-1-i]
			if a == phantom || b == phantom {
				continue
			}
			match := newMatch(tournamentID, NoSide, r, pos, now)
			idA, idB := seeded[a].ID, seeded[b].ID
			match.PlayerAID = &idA
			match.PlayerBID = &idB
			s.Matches = append(s.Matches, match)
			pos++
		}

		// Seat 0 stays put, everyone else rotates one place clockwise.
		last := seats[m-1]
		copy(seats[2:], seats[1:m-1])
		seats[1] = last
	}

	if err := s.Graph().settleAll(now); err != nil {
		return nil, err
	}
	return s, nil
}
