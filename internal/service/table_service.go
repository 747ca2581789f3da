package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// TableService allocates tables to matches. Every check that guards an assignment runs inside the same
// transaction as the writes it protects.
type TableService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	tables *store.TableStore
}

func NewTableService(db *sqlx.DB, store *store.TournamentStore, tables *store.TableStore) *TableService {
	return &TableService{db: db, store: store, tables: tables}
}

type AssignResult struct {
	MatchID     uuid.UUID `json:"matchId"`
	TableID     uuid.UUID `json:"tableId"`
	NewRevision int       `json:"newRevision"`
}

func (s *TableService) CreateTable(ctx context.Context, tournamentID uuid.UUID, label string) (*bracket.Table, error) {
	tables, err := s.CreateTablesBulk(ctx, tournamentID, []string{label})
	if err != nil {
		return nil, err
	}
	return &tables[0], nil
}

// CreateTablesBulk adds tables with labels unique within the tournament.
func (s *TableService) CreateTablesBulk(ctx context.Context, tournamentID uuid.UUID, labels []string) ([]bracket.Table, error) {
	if len(labels) == 0 {
		return nil, apperr.Validation("labels", "at least one table label is required")
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(labels))
	tables := make([]bracket.Table, 0, len(labels))
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			return nil, apperr.Validation("labels", "table label is required")
		}
		if seen[label] {
			return nil, apperr.Validation("labels", "table label %q is given more than once", label)
		}
		seen[label] = true
		tables = append(tables, bracket.Table{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Label:        label,
			Status:       bracket.TableAvailable,
			CreatedAt:    now,
		})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.tournamentTx(ctx, tx, tournamentID); err != nil {
		return nil, err
	}

	existing, err := s.tables.ListLabelsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table labels: %w", err)
	}
	for _, label := range existing {
		if seen[label] {
			return nil, apperr.Conflict(label, "a table with this label already exists")
		}
	}

	if err := s.tables.CreateTables(ctx, tx, tables); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("tournament_id", tournamentID.String()).Int("tables", len(tables)).Msg("tables created")
	return tables, nil
}

func (s *TableService) ListTables(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Table, error) {
	tournament, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament", tournamentID)
	}
	if err := checkTenant(ctx, tournament); err != nil {
		return nil, err
	}
	return s.tables.ListTables(ctx, tournamentID)
}

func (s *TableService) DeleteTable(ctx context.Context, tableID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table, err := s.tableTx(ctx, tx, tableID)
	if err != nil {
		return err
	}
	if table.CurrentMatchID != nil {
		return apperr.Conflict(tableID.String(), "bound to match %s", table.CurrentMatchID)
	}
	if err := s.tables.DeleteTableTx(ctx, tx, tableID); err != nil {
		return notFound(err, "table", tableID)
	}
	return tx.Commit()
}

// AssignMatchToTable binds a ready match to a free table. A stale expectedRev is an OptimisticLockError; a
// table that is under maintenance, blocked or bound to another match is a ResourceConflictError.
func (s *TableService) AssignMatchToTable(ctx context.Context, matchID, tableID uuid.UUID, expectedRev int) (*AssignResult, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.assignTx(ctx, tx, matchID, tableID, expectedRev, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("match_id", matchID.String()).
		Str("table_id", tableID.String()).
		Int("revision", m.Revision).
		Msg("match assigned to table")

	if err := s.tables.TouchLastUsed(ctx, tableID, now); err != nil {
		log.Warn().Err(err).Str("table_id", tableID.String()).Msg("failed to stamp table last used time")
	}

	return &AssignResult{MatchID: matchID, TableID: tableID, NewRevision: m.Revision}, nil
}

func (s *TableService) assignTx(ctx context.Context, tx *sqlx.Tx, matchID, tableID uuid.UUID, expectedRev int, now time.Time) (*bracket.Match, error) {
	m, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, notFound(err, "match", matchID)
	}
	if _, err := s.tournamentTx(ctx, tx, m.TournamentID); err != nil {
		return nil, err
	}
	table, err := s.tableTx(ctx, tx, tableID)
	if err != nil {
		return nil, err
	}
	if table.TournamentID != m.TournamentID {
		return nil, &apperr.TenantMismatchError{Entity: "table", ID: tableID.String()}
	}
	if err := tableConflict(table, m.ID, now); err != nil {
		return nil, err
	}
	if err := checkRevision(m, expectedRev); err != nil {
		return nil, err
	}
	if m.State != matchstate.Ready {
		return nil, matchstate.TransitionError(m.State, matchstate.EventAssignTable)
	}

	from := m.State
	next, err := matchstate.Evaluate(from, matchstate.EventAssignTable, matchFacts(m, &tableID))
	if err != nil {
		return nil, err
	}
	m.State = next
	m.TableID = &tableID
	if err := updateMatch(ctx, tx, s.store, m); err != nil {
		return nil, err
	}

	table.Status = bracket.TableInUse
	table.CurrentMatchID = &m.ID
	if err := s.tables.UpdateTableTx(ctx, tx, table); err != nil {
		return nil, fmt.Errorf("failed to update table: %w", err)
	}

	payload := map[string]string{"tableId": tableID.String(), "tableLabel": table.Label}
	if err := recordEvent(ctx, tx, s.store, m, matchstate.EventAssignTable, from, payload, now); err != nil {
		return nil, err
	}
	return m, nil
}

// tableConflict reports why table cannot take matchID right now.
func tableConflict(table *bracket.Table, matchID uuid.UUID, now time.Time) error {
	id := table.ID.String()
	switch {
	case table.Status == bracket.TableMaintenance:
		return apperr.Conflict(id, "under maintenance")
	case table.IsBlocked(now):
		return apperr.Conflict(id, "blocked until %s", table.BlockedUntil.Format(time.RFC3339))
	case table.CurrentMatchID != nil && *table.CurrentMatchID != matchID:
		return apperr.Conflict(id, "already bound to match %s", table.CurrentMatchID)
	case table.CurrentMatchID == nil && table.Status == bracket.TableInUse:
		return apperr.Conflict(id, "in use")
	}
	return nil
}

// ReleaseTable frees a table. Releasing a free table is a no-op. A match that was only assigned goes back
// to ready; a match being played keeps its table.
func (s *TableService) ReleaseTable(ctx context.Context, tableID uuid.UUID) (*bracket.Table, error) {
	return s.detach(ctx, tableID, "release", func(t *bracket.Table) {})
}

// BlockTableUntil takes a table out of rotation until the given time, unbinding any assigned match.
func (s *TableService) BlockTableUntil(ctx context.Context, tableID uuid.UUID, until time.Time) (*bracket.Table, error) {
	if !until.After(time.Now()) {
		return nil, apperr.Validation("until", "block must end in the future")
	}
	until = until.UTC()
	return s.detach(ctx, tableID, "block", func(t *bracket.Table) {
		t.BlockedUntil = &until
	})
}

func (s *TableService) UnblockTable(ctx context.Context, tableID uuid.UUID) (*bracket.Table, error) {
	return s.detach(ctx, tableID, "unblock", func(t *bracket.Table) {
		t.BlockedUntil = nil
	})
}

// SetMaintenance marks a table out of service indefinitely, or puts it back into rotation.
func (s *TableService) SetMaintenance(ctx context.Context, tableID uuid.UUID, on bool) (*bracket.Table, error) {
	return s.detach(ctx, tableID, "maintenance", func(t *bracket.Table) {
		if on {
			t.Status = bracket.TableMaintenance
		} else {
			t.Status = bracket.TableAvailable
		}
	})
}

// detach clears the table's binding, applies change and saves the table in one transaction.
func (s *TableService) detach(ctx context.Context, tableID uuid.UUID, reason string, change func(*bracket.Table)) (*bracket.Table, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	table, err := s.tableTx(ctx, tx, tableID)
	if err != nil {
		return nil, err
	}
	if table.CurrentMatchID != nil {
		if err := s.unassignTx(ctx, tx, tableID, *table.CurrentMatchID, reason, now); err != nil {
			return nil, err
		}
	}

	table.CurrentMatchID = nil
	if table.Status == bracket.TableInUse {
		table.Status = bracket.TableAvailable
	}
	change(table)
	if err := s.tables.UpdateTableTx(ctx, tx, table); err != nil {
		return nil, fmt.Errorf("failed to update table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("table_id", tableID.String()).
		Str("status", string(table.Status)).
		Str("reason", reason).
		Msg("table updated")
	return table, nil
}

// unassignTx moves the match bound to a table back to ready. Matches in play cannot lose their table.
func (s *TableService) unassignTx(ctx context.Context, tx *sqlx.Tx, tableID, matchID uuid.UUID, reason string, now time.Time) error {
	m, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get bound match: %w", err)
	}

	switch m.State {
	case matchstate.Active, matchstate.Paused:
		return apperr.Conflict(tableID.String(), "match %s is %s on this table", m.ID, m.State)
	case matchstate.Assigned:
	default:
		return nil
	}

	from := m.State
	next, err := matchstate.Evaluate(from, matchstate.EventUnassign, matchFacts(m, nil))
	if err != nil {
		return err
	}
	m.State = next
	m.TableID = nil
	if err := updateMatch(ctx, tx, s.store, m); err != nil {
		return err
	}
	return recordEvent(ctx, tx, s.store, m, matchstate.EventUnassign, from, map[string]string{"reason": reason}, now)
}

// releaseTx frees the table bound to matchID, if it still is. Maintenance status is kept.
func (s *TableService) releaseTx(ctx context.Context, tx *sqlx.Tx, tableID, matchID uuid.UUID) error {
	table, err := s.tables.GetTableTx(ctx, tx, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get table: %w", err)
	}
	if table.CurrentMatchID == nil || *table.CurrentMatchID != matchID {
		return nil
	}

	table.CurrentMatchID = nil
	if table.Status == bracket.TableInUse {
		table.Status = bracket.TableAvailable
	}
	if err := s.tables.UpdateTableTx(ctx, tx, table); err != nil {
		return fmt.Errorf("failed to release table: %w", err)
	}
	return nil
}

func (s *TableService) tableTx(ctx context.Context, tx *sqlx.Tx, tableID uuid.UUID) (*bracket.Table, error) {
	table, err := s.tables.GetTableTx(ctx, tx, tableID)
	if err != nil {
		return nil, notFound(err, "table", tableID)
	}
	if _, err := s.tournamentTx(ctx, tx, table.TournamentID); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *TableService) tournamentTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament", tournamentID)
	}
	if err := checkTenant(ctx, tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}

func matchFacts(m *bracket.Match, tableID *uuid.UUID) matchstate.Facts {
	return matchstate.Facts{
		HasPlayerA: m.PlayerAID != nil,
		HasPlayerB: m.PlayerBID != nil,
		HasTable:   tableID != nil,
		HasWinner:  m.WinnerID != nil,
		IsBye:      m.IsBye,
	}
}
