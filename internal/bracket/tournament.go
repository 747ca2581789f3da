package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentStarted   TournamentStatus = "started"
	TournamentCompleted TournamentStatus = "completed"
)

type Format string

const (
	SingleElimination         Format = "single"
	DoubleElimination         Format = "double"
	RoundRobin                Format = "round_robin"
	ModifiedSingleElimination Format = "modified_single"
)

func (f Format) Valid() bool {
	switch f {
	case SingleElimination, DoubleElimination, RoundRobin, ModifiedSingleElimination:
		return true
	default:
		return false
	}
}

type Tournament struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	OrganizationID     uuid.UUID        `db:"organization_id" json:"organizationId"`
	Name               string           `db:"name" json:"name"`
	Status             TournamentStatus `db:"status" json:"status"`
	Format             Format           `db:"format" json:"format"`
	RaceTo             int              `db:"race_to" json:"raceTo"`
	IncludeConsolation bool             `db:"include_consolation" json:"includeConsolation"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
}
