package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/config"
	"github.com/AdamBeresnev/cue-scheduler/internal/eta"
	"github.com/AdamBeresnev/cue-scheduler/internal/scheduler"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SchedulerService reads a tournament's current state and turns it into a queue, table assignments and
// time predictions. Only AutoAssignTables writes, and it does so through the TableService.
type SchedulerService struct {
	store  *store.TournamentStore
	tables *TableService
	cfg    config.SchedulingConfig
}

func NewSchedulerService(store *store.TournamentStore, tables *TableService, cfg config.SchedulingConfig) *SchedulerService {
	return &SchedulerService{store: store, tables: tables, cfg: cfg}
}

type QueueStatus struct {
	scheduler.Status
	Queue []scheduler.Entry `json:"queue"`
}

type snapshot struct {
	tournament *bracket.Tournament
	players    []bracket.Player
	matches    []bracket.Match
	tables     []bracket.Table
	queue      []scheduler.Entry
}

func (s *SchedulerService) load(ctx context.Context, tournamentID uuid.UUID) (*snapshot, error) {
	tournament, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament", tournamentID)
	}
	if err := checkTenant(ctx, tournament); err != nil {
		return nil, err
	}

	players, err := s.store.GetPlayers(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	matches, err := s.store.GetMatches(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	tables, err := s.tables.tables.ListTables(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	return &snapshot{
		tournament: tournament,
		players:    players,
		matches:    matches,
		tables:     tables,
		queue:      scheduler.BuildQueue(matches),
	}, nil
}

func (s *SchedulerService) etaInput(snap *snapshot, now time.Time) eta.Input {
	players := make(map[uuid.UUID]bracket.Player, len(snap.players))
	for _, p := range snap.players {
		players[p.ID] = p
	}

	in := eta.Input{
		Now:     now,
		RaceTo:  snap.tournament.RaceTo,
		Matches: scheduler.Ordered(snap.queue, snap.matches),
		Tables:  snap.tables,
		Players: players,
	}
	if avg, ok := eta.HistoricalAverage(eta.CompletedDurations(snap.matches), s.cfg.MinHistorySamples); ok {
		in.Historical = avg
	}
	return in
}

// AutoAssignTables pairs the best eligible matches with the tables free right now. A pair that loses a race
// with another organizer is skipped; the match stays queued for the next run.
func (s *SchedulerService) AutoAssignTables(ctx context.Context, tournamentID uuid.UUID) ([]AssignResult, error) {
	snap, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	byID := make(map[uuid.UUID]*bracket.Table, len(snap.tables))
	for i := range snap.tables {
		byID[snap.tables[i].ID] = &snap.tables[i]
	}
	var slots []scheduler.Slot
	for _, t := range eta.TableAvailability(s.etaInput(snap, now)) {
		if table, ok := byID[t.TableID]; ok && table.IsAvailable(now) {
			slots = append(slots, scheduler.Slot{TableID: t.TableID, FreeAt: t.FreeAt})
		}
	}

	var results []AssignResult
	for _, a := range scheduler.Pair(snap.queue, slots) {
		res, err := s.tables.AssignMatchToTable(ctx, a.MatchID, a.TableID, a.Revision)
		if err != nil {
			if apperr.Retryable(err) {
				log.Warn().Err(err).
					Str("match_id", a.MatchID.String()).
					Str("table_id", a.TableID.String()).
					Msg("skipping contested assignment")
				continue
			}
			return results, err
		}
		results = append(results, *res)
	}

	log.Info().
		Str("tournament_id", tournamentID.String()).
		Int("free_tables", len(slots)).
		Int("assigned", len(results)).
		Msg("auto assigned tables")
	return results, nil
}

func (s *SchedulerService) GetQueueStatus(ctx context.Context, tournamentID uuid.UUID) (*QueueStatus, error) {
	snap, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return &QueueStatus{
		Status: scheduler.Summarize(snap.matches, snap.queue, snap.tables, time.Now().UTC()),
		Queue:  snap.queue,
	}, nil
}

func (s *SchedulerService) MatchETAs(ctx context.Context, tournamentID uuid.UUID) ([]eta.MatchETA, error) {
	snap, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return eta.CalculateMatchETAs(s.etaInput(snap, time.Now().UTC())), nil
}

// PlayerWaitTime predicts when the player's next match starts. Nil means the player has nothing left to
// wait for.
func (s *SchedulerService) PlayerWaitTime(ctx context.Context, tournamentID, playerID uuid.UUID) (*eta.WaitTime, error) {
	snap, err := s.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	found := false
	for _, p := range snap.players {
		if p.ID == playerID {
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.NotFound("player", playerID)
	}

	now := time.Now().UTC()
	etas := eta.CalculateMatchETAs(s.etaInput(snap, now))
	wait, ok := eta.PlayerWaitTime(etas, snap.matches, playerID, now)
	if !ok {
		return nil, nil
	}
	return &wait, nil
}
