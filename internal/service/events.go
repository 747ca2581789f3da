package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/middleware"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/jmoiron/sqlx"
)

const systemActor = "system"

// recordEvent appends the transition m just went through, attributed to the actor in ctx.
func recordEvent(ctx context.Context, tx *sqlx.Tx, st *store.TournamentStore, m *bracket.Match, event matchstate.Event, from matchstate.State, payload any, now time.Time) error {
	actor, device := middleware.GetActorFromContext(ctx)

	var body string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
		body = string(raw)
	}

	err := st.AppendEventTx(ctx, tx, &bracket.TransitionEvent{
		MatchID:      m.ID,
		TournamentID: m.TournamentID,
		Actor:        actor,
		Device:       device,
		Event:        event,
		FromState:    from,
		ToState:      m.State,
		Payload:      body,
		CreatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", event, err)
	}
	return nil
}

// asSystem attributes follow-on transitions (byes, routing) to the system rather than the caller.
func asSystem(ctx context.Context) context.Context {
	return middleware.WithActor(ctx, systemActor, "")
}

// updateMatch writes m with compare-and-swap on its revision.
func updateMatch(ctx context.Context, tx *sqlx.Tx, st *store.TournamentStore, m *bracket.Match) error {
	expected := m.Revision
	if err := st.UpdateMatchTx(ctx, tx, m); err != nil {
		if errors.Is(err, store.ErrStaleRevision) {
			return &apperr.OptimisticLockError{Entity: "match", ID: m.ID.String(), Expected: expected}
		}
		return fmt.Errorf("failed to update match: %w", err)
	}
	return nil
}

func checkRevision(m *bracket.Match, expected int) error {
	if m.Revision != expected {
		return &apperr.OptimisticLockError{Entity: "match", ID: m.ID.String(), Expected: expected, Actual: m.Revision}
	}
	return nil
}
