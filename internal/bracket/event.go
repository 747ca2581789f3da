package bracket

import (
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/google/uuid"
)

// TransitionEvent is written once per successful state change and never updated.
type TransitionEvent struct {
	ID           string           `db:"id" json:"id"`
	MatchID      uuid.UUID        `db:"match_id" json:"matchId"`
	TournamentID uuid.UUID        `db:"tournament_id" json:"tournamentId"`
	Actor        string           `db:"actor" json:"actor"`
	Device       string           `db:"device" json:"device"`
	Event        matchstate.Event `db:"event" json:"event"`
	FromState    matchstate.State `db:"from_state" json:"fromState"`
	ToState      matchstate.State `db:"to_state" json:"toState"`
	Payload      string           `db:"payload" json:"payload"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
}
