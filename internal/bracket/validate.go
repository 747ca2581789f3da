package bracket

import (
	"fmt"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
)

func validationFormat(format Format) error {
	return apperr.Validation("format", "unknown bracket format %q", format)
}

// ValidateBracket checks rounds and link targets and returns every problem found.
func ValidateBracket(s *Structure) []string {
	var errs []string
	g := s.Graph()
	fed := map[Link]Key{}
	seen := map[Key]bool{}

	checkLink := func(m *Match, l *Link, kind string) {
		if l == nil {
			return
		}
		if _, ok := g.Lookup(l.Key()); !ok {
			errs = append(errs, fmt.Sprintf("match %s: %s target %s does not exist", m.Key(), kind, l))
			return
		}
		if other, taken := fed[*l]; taken {
			errs = append(errs, fmt.Sprintf("match %s: %s target %s is already fed by %s", m.Key(), kind, l, other))
			return
		}
		fed[*l] = m.Key()
	}

	for i := range s.Matches {
		m := &s.Matches[i]
		if seen[m.Key()] {
			errs = append(errs, fmt.Sprintf("match %s: duplicate bracket position", m.Key()))
		}
		seen[m.Key()] = true

		if m.Round < 1 || m.Round > s.TotalRounds {
			errs = append(errs, fmt.Sprintf("match %s: round %d outside [1, %d]", m.Key(), m.Round, s.TotalRounds))
		}
		if m.Position < 0 {
			errs = append(errs, fmt.Sprintf("match %s: negative position", m.Key()))
		}
		checkLink(m, m.FeedsInto, "feedsInto")
		checkLink(m, m.LoserFeedsInto, "loserFeedsInto")
	}
	return errs
}
