package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/seeding"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WithdrawPlayer removes a player from a draft tournament and closes the gap in the seeding.
func (s *TournamentService) WithdrawPlayer(ctx context.Context, tournamentID, playerID uuid.UUID) ([]bracket.Player, error) {
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
		return nil, apperr.Validation("playerId", "players cannot withdraw once the bracket is generated")
	}

	if err := s.store.DeletePlayerTx(ctx, tx, tournamentID, playerID); err != nil {
		return nil, notFound(err, "player", playerID)
	}

	remaining, err := s.store.GetPlayersTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	reseeded := seeding.ReseedAfterWithdrawal(remaining)
	if err := s.store.UpdatePlayerSeedsTx(ctx, tx, reseeded); err != nil {
		return nil, fmt.Errorf("failed to reseed players: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("tournament_id", tournamentID.String()).
		Str("player_id", playerID.String()).
		Int("remaining", len(reseeded)).
		Msg("player withdrawn")
	return reseeded, nil
}
