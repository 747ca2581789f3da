package bracket

import (
	"fmt"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/google/uuid"
)

// Graph indexes a flat slice of matches by key. Links between matches are keys, never pointers.
type Graph struct {
	Matches []Match
	index   map[Key]int
	touched map[Key]bool
}

func NewGraph(matches []Match) *Graph {
	g := &Graph{Matches: matches, index: make(map[Key]int, len(matches))}
	for i := range matches {
		g.index[matches[i].Key()] = i
	}
	return g
}

func (g *Graph) Lookup(k Key) (*Match, bool) {
	i, ok := g.index[k]
	if !ok {
		return nil, false
	}
	return &g.Matches[i], true
}

// Touched returns, in bracket order, the matches that received a player since the last call.
func (g *Graph) Touched() []Key {
	var keys []Key
	for i := range g.Matches {
		if k := g.Matches[i].Key(); g.touched[k] {
			keys = append(keys, k)
		}
	}
	g.touched = nil
	return keys
}

func (g *Graph) ByID(id uuid.UUID) (*Match, bool) {
	for i := range g.Matches {
		if g.Matches[i].ID == id {
			return &g.Matches[i], true
		}
	}
	return nil, false
}

type feed struct {
	from  int
	loser bool
}

// Feeders returns, per slot, the match whose winner (or loser) fills it.
func (g *Graph) feeders() map[int][2]*feed {
	out := make(map[int][2]*feed)
	add := func(from int, l *Link, loser bool) {
		if l == nil {
			return
		}
		to, ok := g.index[l.Key()]
		if !ok {
			return
		}
		slots := out[to]
		idx := 0
		if l.Slot == SlotB {
			idx = 1
		}
		slots[idx] = &feed{from: from, loser: loser}
		out[to] = slots
	}
	for i := range g.Matches {
		add(i, g.Matches[i].FeedsInto, false)
		add(i, g.Matches[i].LoserFeedsInto, true)
	}
	return out
}

// Dependencies returns the keys of the matches that feed k.
func (g *Graph) Dependencies(k Key) []Key {
	i, ok := g.index[k]
	if !ok {
		return nil
	}
	var deps []Key
	for _, f := range g.feeders()[i] {
		if f != nil {
			deps = append(deps, g.Matches[f.from].Key())
		}
	}
	return deps
}

// markByes decides, for a freshly built bracket, which slots will ever receive a player. A match with a
// single live slot is a bye; one with none is dead and closed immediately without a winner. Matches must
// be ordered so that every feeder precedes what it feeds.
func (g *Graph) markByes(now time.Time) {
	feeders := g.feeders()
	live := make([]int, len(g.Matches))

	for i := range g.Matches {
		m := &g.Matches[i]
		slots := feeders[i]
		for s, f := range slots {
			switch {
			case f == nil:
				if m.PlayerIn([]Slot{SlotA, SlotB}[s]) != nil {
					live[i]++
				}
			case f.loser:
				if live[f.from] == 2 {
					live[i]++
				}
			default:
				if live[f.from] >= 1 {
					live[i]++
				}
			}
		}

		switch live[i] {
		case 2:
		case 1:
			m.IsBye = true
		default:
			m.IsBye = true
			m.State = matchstate.Completed
			m.CompletedAt = &now
		}
	}
}

// settleAll resolves every pending match in order; used once after generation.
func (g *Graph) settleAll(now time.Time) error {
	for i := range g.Matches {
		if _, err := g.settle(i, now, nil); err != nil {
			return err
		}
	}
	return nil
}

// Change records one state change made while routing players through the bracket.
type Change struct {
	Key   Key
	From  matchstate.State
	To    matchstate.State
	Event matchstate.Event
}

// settle moves a pending match forward once its players are known: a bye completes with its only
// player, a full match becomes ready.
func (g *Graph) settle(i int, now time.Time, changes []Change) ([]Change, error) {
	m := &g.Matches[i]
	if m.State != matchstate.Pending {
		return changes, nil
	}

	if m.IsBye {
		winner := m.PlayerAID
		if winner == nil {
			winner = m.PlayerBID
		}
		if winner == nil {
			return changes, nil
		}
		id := *winner
		m.WinnerID = &id
		m.State = matchstate.Completed
		m.CompletedAt = &now
		changes = append(changes, Change{Key: m.Key(), From: matchstate.Pending, To: matchstate.Completed, Event: matchstate.EventBye})
		return g.advance(i, now, changes)
	}

	if m.HasPlayers() {
		m.State = matchstate.Ready
		changes = append(changes, Change{Key: m.Key(), From: matchstate.Pending, To: matchstate.Ready, Event: matchstate.EventResolve})
	}
	return changes, nil
}

// Advance routes the winner and loser of the decided match k into the matches they feed and settles those
// matches, cascading through byes. The returned changes list every state change made, in order; matches
// that only received a player are reported by Touched.
func (g *Graph) Advance(k Key, now time.Time) ([]Change, error) {
	i, ok := g.index[k]
	if !ok {
		return nil, fmt.Errorf("match %s not in bracket", k)
	}
	return g.advance(i, now, nil)
}

func (g *Graph) advance(i int, now time.Time, changes []Change) ([]Change, error) {
	m := &g.Matches[i]
	if m.WinnerID == nil {
		return changes, nil
	}

	var err error
	if m.FeedsInto != nil {
		if changes, err = g.place(*m.FeedsInto, *m.WinnerID, now, changes); err != nil {
			return changes, err
		}
	}
	if m.LoserFeedsInto != nil {
		if loser, ok := m.Loser(); ok {
			if changes, err = g.place(*m.LoserFeedsInto, loser, now, changes); err != nil {
				return changes, err
			}
		}
	}
	return changes, nil
}

func (g *Graph) place(l Link, player uuid.UUID, now time.Time, changes []Change) ([]Change, error) {
	j, ok := g.index[l.Key()]
	if !ok {
		return changes, fmt.Errorf("link target %s not in bracket", l)
	}
	target := &g.Matches[j]
	if current := target.PlayerIn(l.Slot); current != nil && *current != player {
		return changes, fmt.Errorf("slot %s already holds player %s", l, current)
	}
	target.setPlayer(l.Slot, player)
	if g.touched == nil {
		g.touched = map[Key]bool{}
	}
	g.touched[target.Key()] = true
	return g.settle(j, now, changes)
}
