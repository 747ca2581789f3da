package scheduler

import (
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
)

type Status struct {
	Pending  int `json:"pending"`
	Ready    int `json:"ready"`
	Eligible int `json:"eligible"`
	Assigned int `json:"assigned"`
	Active   int `json:"active"`
	Paused   int `json:"paused"`
	Finished int `json:"finished"`

	AvailableTables   int `json:"availableTables"`
	InUseTables       int `json:"inUseTables"`
	MaintenanceTables int `json:"maintenanceTables"`
}

// Summarize counts matches by state and tables by availability. Byes still waiting for their player are
// not counted.
func Summarize(matches []bracket.Match, queue []Entry, tables []bracket.Table, now time.Time) Status {
	var s Status
	for _, m := range matches {
		switch {
		case m.IsBye && !matchstate.IsTerminal(m.State):
			// waiting for its player, never played
		case m.State == matchstate.Pending:
			s.Pending++
		case m.State == matchstate.Ready:
			s.Ready++
		case m.State == matchstate.Assigned:
			s.Assigned++
		case m.State == matchstate.Active:
			s.Active++
		case m.State == matchstate.Paused:
			s.Paused++
		case matchstate.IsTerminal(m.State):
			s.Finished++
		}
	}
	for _, e := range queue {
		if e.Eligible {
			s.Eligible++
		}
	}
	for i := range tables {
		t := &tables[i]
		switch {
		case t.IsAvailable(now):
			s.AvailableTables++
		case t.Status == bracket.TableInUse:
			s.InUseTables++
		default:
			s.MaintenanceTables++
		}
	}
	return s
}
