package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TableStore struct {
	db *sqlx.DB
}

func NewTableStore(db *sqlx.DB) *TableStore {
	return &TableStore{db: db}
}

const (
	createTablesQuery = `
		INSERT INTO tables (id, tournament_id, label, status, blocked_until, current_match_id, last_used_at, created_at)
		VALUES (:id, :tournament_id, :label, :status, :blocked_until, :current_match_id, :last_used_at, :created_at)
	`
	getTableQuery    = "SELECT * FROM tables WHERE id = ?"
	listTablesQuery  = "SELECT * FROM tables WHERE tournament_id = ? ORDER BY label ASC"
	listLabelsQuery  = "SELECT label FROM tables WHERE tournament_id = ?"
	updateTableQuery = `
		UPDATE tables SET
			status = :status,
			blocked_until = :blocked_until,
			current_match_id = :current_match_id
		WHERE id = :id
	`
	deleteTableQuery   = "DELETE FROM tables WHERE id = ? AND current_match_id IS NULL"
	touchLastUsedQuery = "UPDATE tables SET last_used_at = ? WHERE id = ?"
)

func (s *TableStore) CreateTables(ctx context.Context, tx *sqlx.Tx, tables []bracket.Table) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createTablesQuery, tables)
	return err
}

func (s *TableStore) GetTable(ctx context.Context, id uuid.UUID) (*bracket.Table, error) {
	return getTable(ctx, s.db, id)
}

func (s *TableStore) GetTableTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Table, error) {
	return getTable(ctx, tx, id)
}

func getTable(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Table, error) {
	var table bracket.Table
	if err := sqlx.GetContext(ctx, q, &table, getTableQuery, id); err != nil {
		return nil, notFound(err)
	}
	return &table, nil
}

func (s *TableStore) ListTables(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Table, error) {
	var tables []bracket.Table
	err := s.db.SelectContext(ctx, &tables, listTablesQuery, tournamentID)
	return tables, err
}

func (s *TableStore) ListTablesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Table, error) {
	var tables []bracket.Table
	err := tx.SelectContext(ctx, &tables, listTablesQuery, tournamentID)
	return tables, err
}

func (s *TableStore) ListLabelsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]string, error) {
	var labels []string
	err := tx.SelectContext(ctx, &labels, listLabelsQuery, tournamentID)
	return labels, err
}

func (s *TableStore) UpdateTableTx(ctx context.Context, tx *sqlx.Tx, table *bracket.Table) error {
	res, err := tx.NamedExecContext(ctx, updateTableQuery, table)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteTableTx removes a table that is not bound to a match. ErrNotFound covers both a missing and a bound
// table; callers check which beforehand.
func (s *TableStore) DeleteTableTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, deleteTableQuery, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *TableStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, touchLastUsedQuery, at.UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
