package store

import (
	"context"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	appendEventQuery = `
		INSERT INTO transition_events (id, match_id, tournament_id, actor, device, event, from_state, to_state, payload, created_at)
		VALUES (:id, :match_id, :tournament_id, :actor, :device, :event, :from_state, :to_state, :payload, :created_at)
	`
	listEventsQuery           = "SELECT * FROM transition_events WHERE match_id = ? ORDER BY id ASC"
	listTournamentEventsQuery = "SELECT * FROM transition_events WHERE tournament_id = ? ORDER BY id ASC"
)

// AppendEventTx writes e in the caller's transaction, filling in its id.
func (s *TournamentStore) AppendEventTx(ctx context.Context, tx *sqlx.Tx, e *bracket.TransitionEvent) error {
	if e.ID == "" {
		e.ID = NewEventID(e.CreatedAt)
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	_, err := tx.NamedExecContext(ctx, appendEventQuery, e)
	return err
}

func (s *TournamentStore) ListEvents(ctx context.Context, matchID uuid.UUID) ([]bracket.TransitionEvent, error) {
	var events []bracket.TransitionEvent
	err := s.db.SelectContext(ctx, &events, listEventsQuery, matchID)
	return events, err
}

func (s *TournamentStore) ListTournamentEvents(ctx context.Context, tournamentID uuid.UUID) ([]bracket.TransitionEvent, error) {
	var events []bracket.TransitionEvent
	err := s.db.SelectContext(ctx, &events, listTournamentEventsQuery, tournamentID)
	return events, err
}
