package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TournamentStore persists tournaments, their players, matches and transition events. Methods taking a
// *sqlx.Tx run inside the caller's transaction; the rest read through the pool.
type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, organization_id, name, status, format, race_to, include_consolation, created_at)
		VALUES (:id, :organization_id, :name, :status, :format, :race_to, :include_consolation, :created_at)
	`
	createPlayersQuery = `
		INSERT INTO players (id, tournament_id, name, seed, rating_system, rating_value, created_at)
		VALUES (:id, :tournament_id, :name, :seed, :rating_system, :rating_value, :created_at)
	`
	getTournamentQuery    = "SELECT * FROM tournaments WHERE id = ?"
	listTournamentsQuery  = "SELECT * FROM tournaments WHERE organization_id = ? ORDER BY created_at DESC"
	updateStatusQuery     = "UPDATE tournaments SET status = ? WHERE id = ?"
	getPlayersQuery       = "SELECT * FROM players WHERE tournament_id = ? ORDER BY seed IS NULL, seed ASC, created_at ASC"
	deletePlayerQuery     = "DELETE FROM players WHERE id = ? AND tournament_id = ?"
	updatePlayerSeedQuery = "UPDATE players SET seed = ? WHERE id = ?"
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, tx, id)
}

func getTournament(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, q, &tournament, getTournamentQuery, id); err != nil {
		return nil, notFound(err)
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context, organizationID uuid.UUID) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, listTournamentsQuery, organizationID)
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	res, err := tx.ExecContext(ctx, updateStatusQuery, status, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *TournamentStore) CreatePlayers(ctx context.Context, tx *sqlx.Tx, players []bracket.Player) error {
	if len(players) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createPlayersQuery, players)
	return err
}

func (s *TournamentStore) GetPlayers(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Player, error) {
	var players []bracket.Player
	err := s.db.SelectContext(ctx, &players, getPlayersQuery, tournamentID)
	return players, err
}

func (s *TournamentStore) GetPlayersTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Player, error) {
	var players []bracket.Player
	err := tx.SelectContext(ctx, &players, getPlayersQuery, tournamentID)
	return players, err
}

func (s *TournamentStore) DeletePlayerTx(ctx context.Context, tx *sqlx.Tx, tournamentID, playerID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, deletePlayerQuery, playerID, tournamentID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *TournamentStore) UpdatePlayerSeedsTx(ctx context.Context, tx *sqlx.Tx, players []bracket.Player) error {
	stmt, err := tx.PreparexContext(ctx, updatePlayerSeedQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range players {
		if _, err := stmt.ExecContext(ctx, p.Seed, p.ID); err != nil {
			return fmt.Errorf("failed to update seed of player %s: %w", p.ID, err)
		}
	}
	return nil
}
