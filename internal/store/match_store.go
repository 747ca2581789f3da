package store

import (
	"context"
	"database/sql"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	createMatchesQuery = `
		INSERT INTO matches (id, tournament_id, bracket_side, round_number, position, player_a_id, player_b_id,
			score_a, score_b, state, winner_id, feeds_into, loser_feeds_into, is_bye, table_id, revision,
			started_at, completed_at, created_at)
		VALUES (:id, :tournament_id, :bracket_side, :round_number, :position, :player_a_id, :player_b_id,
			:score_a, :score_b, :state, :winner_id, :feeds_into, :loser_feeds_into, :is_bye, :table_id, :revision,
			:started_at, :completed_at, :created_at)
	`
	getMatchQuery   = "SELECT * FROM matches WHERE id = ?"
	getMatchesQuery = `
		SELECT * FROM matches WHERE tournament_id = ?
		ORDER BY CASE bracket_side WHEN 'winners' THEN 0 WHEN 'losers' THEN 1 WHEN 'grand_finals' THEN 2 ELSE 3 END,
			round_number ASC, position ASC
	`
	// Compare-and-swap on revision: the update applies only if nobody changed the row since it was read.
	updateMatchQuery = `
		UPDATE matches SET
			player_a_id = :player_a_id,
			player_b_id = :player_b_id,
			score_a = :score_a,
			score_b = :score_b,
			state = :state,
			winner_id = :winner_id,
			table_id = :table_id,
			started_at = :started_at,
			completed_at = :completed_at,
			revision = :revision + 1
		WHERE id = :id AND revision = :revision
	`
)

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	// SQLite caps bound variables per statement, so large brackets go in batches.
	const batch = 40
	for start := 0; start < len(matches); start += batch {
		end := min(start+batch, len(matches))
		if _, err := tx.NamedExecContext(ctx, createMatchesQuery, matches[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, s.db, id)
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, tx, id)
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, getMatchQuery, id); err != nil {
		return nil, notFound(err)
	}
	return &match, nil
}

// GetMatches returns a tournament's matches in bracket order, feeders before the matches they feed.
func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, getMatchesQuery, tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, getMatchesQuery, tournamentID)
	return matches, err
}

// UpdateMatchTx writes the mutable fields of m if its stored revision still equals m.Revision, then bumps
// m.Revision. ErrStaleRevision means another writer got there first.
func (s *TournamentStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, m *bracket.Match) error {
	res, err := tx.NamedExecContext(ctx, updateMatchQuery, m)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleRevision
	}
	m.Revision++
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
