package eta

import (
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/google/uuid"
)

// Input is everything the occupancy simulation needs. Matches must be in queue priority order; matches
// that are not waiting to be played are used only for table occupancy and dependencies.
type Input struct {
	Now        time.Time
	RaceTo     int
	Historical time.Duration
	Matches    []bracket.Match
	Tables     []bracket.Table
	Players    map[uuid.UUID]bracket.Player
}

type MatchETA struct {
	MatchID    uuid.UUID     `json:"matchId"`
	TableID    *uuid.UUID    `json:"tableId"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
}

// TableFreeAt is when a table can next take a match.
type TableFreeAt struct {
	TableID uuid.UUID `json:"tableId"`
	FreeAt  time.Time `json:"freeAt"`
}

type simulation struct {
	in     Input
	graph  *bracket.Graph
	freeAt map[uuid.UUID]time.Time
	order  []uuid.UUID
	ends   map[bracket.Key]time.Time
	// playerFreeAt is when each player is done with the matches placed so far.
	playerFreeAt map[uuid.UUID]time.Time
}

func newSimulation(in Input) *simulation {
	sim := &simulation{
		in:     in,
		graph:  bracket.NewGraph(append([]bracket.Match(nil), in.Matches...)),
		freeAt: map[uuid.UUID]time.Time{},
		ends:   map[bracket.Key]time.Time{},

		playerFreeAt: map[uuid.UUID]time.Time{},
	}

	running := map[uuid.UUID]time.Time{}
	for _, m := range in.Matches {
		if m.State != matchstate.Active && m.State != matchstate.Paused {
			continue
		}
		end := in.Now
		if m.StartedAt != nil {
			end = latest(in.Now, m.StartedAt.Add(sim.duration(m)))
		}
		sim.ends[m.Key()] = end
		sim.occupyPlayers(m, end)
		if m.TableID != nil {
			running[*m.TableID] = end
		}
	}

	for _, t := range in.Tables {
		free := in.Now
		switch {
		case t.IsBlocked(in.Now):
			free = *t.BlockedUntil
		case t.Status == bracket.TableMaintenance:
			continue
		}
		if end, ok := running[t.ID]; ok {
			free = latest(free, end)
		}
		sim.freeAt[t.ID] = free
		sim.order = append(sim.order, t.ID)
	}
	return sim
}

func (sim *simulation) duration(m bracket.Match) time.Duration {
	a, b := sim.levels(m)
	return EstimateMatchDuration(sim.in.RaceTo, a, b, sim.in.Historical)
}

func (sim *simulation) levels(m bracket.Match) (bracket.SkillLevel, bracket.SkillLevel) {
	level := func(id *uuid.UUID) bracket.SkillLevel {
		if id == nil {
			return ""
		}
		l, _ := sim.in.Players[*id].SkillLevel()
		return l
	}
	return level(m.PlayerAID), level(m.PlayerBID)
}

func (sim *simulation) confidence(m bracket.Match) float64 {
	c := 0.5
	if sim.in.Historical > 0 {
		c += 0.3
	}
	if a, b := sim.levels(m); a != "" && b != "" {
		c += 0.2
	}
	return min(c, 1)
}

// earliestTable returns the table on which a match that can start at ready starts soonest, preferring
// earlier tables on ties.
func (sim *simulation) earliestTable(ready time.Time) (uuid.UUID, bool) {
	var best uuid.UUID
	var bestStart time.Time
	found := false
	for _, id := range sim.order {
		start := latest(ready, sim.freeAt[id])
		if !found || start.Before(bestStart) {
			best, bestStart, found = id, start, true
		}
	}
	return best, found
}

func (sim *simulation) playersReady(m bracket.Match, at time.Time) time.Time {
	for _, id := range []*uuid.UUID{m.PlayerAID, m.PlayerBID} {
		if id != nil {
			at = latest(at, sim.playerFreeAt[*id])
		}
	}
	return at
}

func (sim *simulation) occupyPlayers(m bracket.Match, until time.Time) {
	for _, id := range []*uuid.UUID{m.PlayerAID, m.PlayerBID} {
		if id != nil {
			sim.playerFreeAt[*id] = until
		}
	}
}

// dependenciesEnd is the latest predicted end of the matches feeding k. ok is false while one of them has
// not been simulated yet. A bye takes no table time, so it ends when its own feeders do.
func (sim *simulation) dependenciesEnd(k bracket.Key) (time.Time, bool) {
	end := sim.in.Now
	for _, dep := range sim.graph.Dependencies(k) {
		m, _ := sim.graph.Lookup(dep)
		if matchstate.IsTerminal(m.State) {
			continue
		}
		depEnd, ok := sim.ends[dep]
		if !ok && m.IsBye {
			depEnd, ok = sim.dependenciesEnd(dep)
		}
		if !ok {
			return end, false
		}
		end = latest(end, depEnd)
	}
	return end, true
}

func (sim *simulation) place(m bracket.Match, depEnd time.Time) MatchETA {
	d := sim.duration(m)
	start := sim.playersReady(m, latest(sim.in.Now, depEnd))

	var tableID *uuid.UUID
	if m.TableID != nil {
		if _, ok := sim.freeAt[*m.TableID]; ok {
			id := *m.TableID
			tableID = &id
		}
	}
	if tableID == nil {
		if id, ok := sim.earliestTable(start); ok {
			tableID = &id
		}
	}
	if tableID != nil {
		start = latest(start, sim.freeAt[*tableID])
		sim.freeAt[*tableID] = start.Add(d)
	}

	end := start.Add(d)
	sim.ends[m.Key()] = end
	sim.occupyPlayers(m, end)
	return MatchETA{
		MatchID:    m.ID,
		TableID:    tableID,
		Start:      start,
		End:        end,
		Duration:   d,
		Confidence: sim.confidence(m),
	}
}

// waiting reports whether m still needs table time. A bye is decided as soon as its player arrives.
func waiting(m bracket.Match) bool {
	if m.IsBye {
		return false
	}
	return m.State == matchstate.Pending || m.State == matchstate.Ready || m.State == matchstate.Assigned
}

// CalculateMatchETAs walks the waiting matches in queue order, placing each on the table where it can start
// soonest. A match never starts before the matches feeding it are predicted to end, and a player is never
// placed in two matches at once. Results are in the
// order matches were placed.
func CalculateMatchETAs(in Input) []MatchETA {
	sim := newSimulation(in)

	var queue []bracket.Match
	for _, m := range in.Matches {
		if waiting(m) {
			queue = append(queue, m)
		}
	}

	// Assigned matches go first on their own tables.
	var etas []MatchETA
	var rest []bracket.Match
	for _, m := range queue {
		if m.State == matchstate.Assigned && m.TableID != nil {
			depEnd, _ := sim.dependenciesEnd(m.Key())
			etas = append(etas, sim.place(m, depEnd))
			continue
		}
		rest = append(rest, m)
	}

	// Later rounds of one bracket can outrank earlier rounds of another, so keep passing over the queue
	// until every match whose feeders are placed has been placed.
	for len(rest) > 0 {
		var deferred []bracket.Match
		for _, m := range rest {
			depEnd, ok := sim.dependenciesEnd(m.Key())
			if !ok {
				deferred = append(deferred, m)
				continue
			}
			etas = append(etas, sim.place(m, depEnd))
		}
		if len(deferred) == len(rest) {
			for _, m := range deferred {
				depEnd, _ := sim.dependenciesEnd(m.Key())
				etas = append(etas, sim.place(m, depEnd))
			}
			break
		}
		rest = deferred
	}
	return etas
}

// TableAvailability reports when each usable table frees up, soonest first.
func TableAvailability(in Input) []TableFreeAt {
	sim := newSimulation(in)
	out := make([]TableFreeAt, 0, len(sim.order))
	for _, id := range sim.order {
		out = append(out, TableFreeAt{TableID: id, FreeAt: sim.freeAt[id]})
	}
	sortByFreeAt(out)
	return out
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
