package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/seeding"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateBracket seeds the players, builds the bracket in memory and writes it in one transaction. Byes
// resolved during generation are recorded as system transitions.
func (s *TournamentService) GenerateBracket(ctx context.Context, tournamentID uuid.UUID, opts seeding.Options) (*bracket.Structure, error) {
	seeder, err := opts.Seeder()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament", tournamentID)
	}
	if err := checkTenant(ctx, tournament); err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentDraft {
		return nil, apperr.Validation("tournamentId", "bracket for tournament %s was already generated", tournamentID)
	}

	players, err := s.store.GetPlayersTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	if err := s.checkPlayerCount(tournament.Format, len(players)); err != nil {
		return nil, err
	}

	seeded, err := seeder(players)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	structure, err := bracket.Generate(tournament.Format, tournamentID, seeded, bracket.Options{
		IncludeConsolation: tournament.IncludeConsolation,
		Now:                now,
	})
	if err != nil {
		return nil, err
	}
	if problems := bracket.ValidateBracket(structure); len(problems) > 0 {
		return nil, fmt.Errorf("generated bracket is inconsistent: %s", strings.Join(problems, "; "))
	}

	if err := s.store.UpdatePlayerSeedsTx(ctx, tx, seeded); err != nil {
		return nil, fmt.Errorf("failed to save seeds: %w", err)
	}
	if err := s.store.CreateMatches(ctx, tx, structure.Matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}
	sysCtx := asSystem(ctx)
	for i := range structure.Matches {
		m := &structure.Matches[i]
		if m.State == matchstate.Pending {
			continue
		}
		event := matchstate.EventResolve
		if m.IsBye {
			event = matchstate.EventBye
		}
		if err := recordEvent(sysCtx, tx, s.store, m, event, matchstate.Pending, nil, now); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournamentID, bracket.TournamentStarted); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("tournament_id", tournamentID.String()).
		Str("format", string(structure.Format)).
		Str("seeding", opts.String()).
		Int("matches", len(structure.Matches)).
		Int("byes", structure.ByeCount).
		Msg("bracket generated")
	return structure, nil
}
