package bracket

import (
	"github.com/google/uuid"
)

// GenerateModifiedSingleElimination is single elimination plus, when requested and both semifinals are
// real matches, a consolation match between the semifinal losers. The consolation match shares the final's
// round with no bracket tag.
func GenerateModifiedSingleElimination(tournamentID uuid.UUID, players []Player, opts Options) (*Structure, error) {
	s, err := GenerateSingleElimination(tournamentID, players, opts)
	if err != nil {
		return nil, err
	}
	s.Format = ModifiedSingleElimination

	if !opts.IncludeConsolation || s.TotalRounds < 2 {
		return s, nil
	}

	semis := make([]*Match, 0, 2)
	for i := range s.Matches {
		m := &s.Matches[i]
		if m.Bracket == WinnersSide && m.Round == s.TotalRounds-1 {
			semis = append(semis, m)
		}
	}
	if len(semis) != 2 || semis[0].IsBye || semis[1].IsBye {
		return s, nil
	}

	consolation := newMatch(tournamentID, NoSide, s.TotalRounds, 0, opts.now())
	for _, semi := range semis {
		semi.LoserFeedsInto = &Link{Bracket: NoSide, Round: s.TotalRounds, Position: 0, Slot: slotFor(semi.Position)}
	}
	s.Matches = append(s.Matches, consolation)
	return s, nil
}

// Generate dispatches on format.
func Generate(format Format, tournamentID uuid.UUID, players []Player, opts Options) (*Structure, error) {
	switch format {
	case SingleElimination:
		return GenerateSingleElimination(tournamentID, players, opts)
	case DoubleElimination:
		return GenerateDoubleElimination(tournamentID, players, opts)
	case RoundRobin:
		return GenerateRoundRobin(tournamentID, players, opts)
	case ModifiedSingleElimination:
		return GenerateModifiedSingleElimination(tournamentID, players, opts)
	default:
		return nil, validationFormat(format)
	}
}
