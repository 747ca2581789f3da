package bracket

import (
	"time"

	"github.com/google/uuid"
)

// GenerateDoubleElimination builds the winners bracket, a losers bracket alternating losers-vs-losers
// rounds with crossover rounds that take the losers of the next winners round, and one grand final.
//
// Losers bracket rounds are numbered 1..2(W-1) for W winners rounds; the grand final sits in the last
// round of the structure. Crossover rounds take winners-round losers in reverse order so that a player
// dropping down does not immediately meet someone from their own half.
func GenerateDoubleElimination(tournamentID uuid.UUID, players []Player, opts Options) (*Structure, error) {
	if err := checkPlayerCount(len(players), MaxPlayers); err != nil {
		return nil, err
	}
	seeded, err := seedPlayers(players, opts.Seeder)
	if err != nil {
		return nil, err
	}

	now := opts.now()
	s := newEliminationStructure(DoubleElimination, len(seeded))
	winnersRounds := s.TotalRounds
	losersRounds := 2 * (winnersRounds - 1)
	finalRound := max(winnersRounds, losersRounds) + 1
	s.TotalRounds = finalRound

	grandFinal := newMatch(tournamentID, GrandFinalsSide, finalRound, 0, now)
	toGrandFinal := func(slot Slot) *Link {
		return &Link{Bracket: GrandFinalsSide, Round: finalRound, Position: 0, Slot: slot}
	}

	matches := buildWinnersBracket(tournamentID, seeded, s.BracketSize, now)
	for i := range matches {
		m := &matches[i]
		count := s.BracketSize >> m.Round

		switch {
		case m.Round == winnersRounds:
			m.FeedsInto = toGrandFinal(SlotA)
			if winnersRounds == 1 {
				m.LoserFeedsInto = toGrandFinal(SlotB)
			} else {
				m.LoserFeedsInto = &Link{Bracket: LosersSide, Round: losersRounds, Position: 0, Slot: SlotB}
			}
		case m.Round == 1:
			m.LoserFeedsInto = &Link{Bracket: LosersSide, Round: 1, Position: m.Position / 2, Slot: slotFor(m.Position)}
		default:
			m.LoserFeedsInto = &Link{Bracket: LosersSide, Round: 2 * (m.Round - 1), Position: count - 1 - m.Position, Slot: SlotB}
		}
	}

	matches = append(matches, buildLosersBracket(tournamentID, s.BracketSize, losersRounds, toGrandFinal(SlotB), now)...)
	matches = append(matches, grandFinal)
	s.Matches = matches

	g := s.Graph()
	g.markByes(now)
	if err := g.settleAll(now); err != nil {
		return nil, err
	}
	return s, nil
}

func buildLosersBracket(tournamentID uuid.UUID, bracketSize, losersRounds int, final *Link, now time.Time) []Match {
	var matches []Match
	for lr := 1; lr <= losersRounds; lr++ {
		stage := (lr + 1) / 2
		count := bracketSize >> (stage + 1)
		crossover := lr%2 == 0

		for pos := 0; pos < count; pos++ {
			m := newMatch(tournamentID, LosersSide, lr, pos, now)
			switch {
			case lr == losersRounds:
				m.FeedsInto = final
			case crossover:
				m.FeedsInto = &Link{Bracket: LosersSide, Round: lr + 1, Position: pos / 2, Slot: slotFor(pos)}
			default:
				m.FeedsInto = &Link{Bracket: LosersSide, Round: lr + 1, Position: pos, Slot: SlotA}
			}
			matches = append(matches, m)
		}
	}
	return matches
}
