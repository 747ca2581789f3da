package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableInUse       TableStatus = "in_use"
	TableMaintenance TableStatus = "maintenance"
)

type Table struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	TournamentID   uuid.UUID   `db:"tournament_id" json:"tournamentId"`
	Label          string      `db:"label" json:"label"`
	Status         TableStatus `db:"status" json:"status"`
	BlockedUntil   *time.Time  `db:"blocked_until" json:"blockedUntil"`
	CurrentMatchID *uuid.UUID  `db:"current_match_id" json:"currentMatchId"`
	LastUsedAt     *time.Time  `db:"last_used_at" json:"lastUsedAt"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

func (t *Table) IsBlocked(now time.Time) bool {
	return t.BlockedUntil != nil && t.BlockedUntil.After(now)
}

func (t *Table) IsAvailable(now time.Time) bool {
	return t.Status == TableAvailable && t.CurrentMatchID == nil && !t.IsBlocked(now)
}
