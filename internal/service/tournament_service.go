package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/config"
	"github.com/AdamBeresnev/cue-scheduler/internal/middleware"
	"github.com/AdamBeresnev/cue-scheduler/internal/seeding"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/AdamBeresnev/cue-scheduler/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type TournamentService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	tables *store.TableStore
	cfg    config.SchedulingConfig
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, tables *store.TableStore, cfg config.SchedulingConfig) *TournamentService {
	return &TournamentService{db: db, store: store, tables: tables, cfg: cfg}
}

type PlayerInput struct {
	Name         string `json:"name"`
	Seed         *int   `json:"seed"`
	RatingSystem string `json:"ratingSystem"`
	RatingValue  string `json:"ratingValue"`
}

type TournamentInput struct {
	Name               string         `json:"name"`
	Format             bracket.Format `json:"format"`
	RaceTo             int            `json:"raceTo"`
	IncludeConsolation bool           `json:"includeConsolation"`
	Players            []PlayerInput  `json:"players"`
}

type TournamentData struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Players    []bracket.Player    `json:"players"`
	Matches    []bracket.Match     `json:"matches"`
	Tables     []bracket.Table     `json:"tables"`
}

// CreateTournament stores a draft tournament with its players. Players keep the seeds they were given
// when every one of them has one; otherwise they are seeded in input order.
func (s *TournamentService) CreateTournament(ctx context.Context, input TournamentInput) (*bracket.Tournament, error) {
	orgID, ok := middleware.GetOrganizationIDFromContext(ctx)
	if !ok {
		return nil, &apperr.TenantMismatchError{Entity: "organization", ID: "none"}
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("name", "tournament name is required")
	}
	if !input.Format.Valid() {
		return nil, apperr.Validation("format", "unknown bracket format %q", input.Format)
	}
	raceTo := input.RaceTo
	if raceTo == 0 {
		raceTo = s.cfg.DefaultRaceTo
	}
	if raceTo < 1 {
		return nil, apperr.Validation("raceTo", "race to must be positive, got %d", raceTo)
	}

	now := time.Now().UTC()
	tournament := &bracket.Tournament{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		Name:               name,
		Status:             bracket.TournamentDraft,
		Format:             input.Format,
		RaceTo:             raceTo,
		IncludeConsolation: input.IncludeConsolation,
		CreatedAt:          now,
	}

	players, err := newPlayers(tournament.ID, input.Players, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlayerCount(tournament.Format, len(players)); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	if err := s.store.CreatePlayers(ctx, tx, players); err != nil {
		return nil, fmt.Errorf("failed to create players: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("tournament_id", tournament.ID.String()).
		Str("format", string(tournament.Format)).
		Int("players", len(players)).
		Msg("tournament created")
	return tournament, nil
}

func newPlayers(tournamentID uuid.UUID, inputs []PlayerInput, now time.Time) ([]bracket.Player, error) {
	players := make([]bracket.Player, 0, len(inputs))
	allSeeded := true
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperr.Validation("players", "player %d has no name", i+1)
		}
		if in.Seed == nil {
			allSeeded = false
		}
		players = append(players, bracket.Player{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Name:         name,
			Seed:         in.Seed,
			RatingSystem: utils.StringOrNil(in.RatingSystem),
			RatingValue:  utils.StringOrNil(in.RatingValue),
			CreatedAt:    now,
		})
	}

	if !allSeeded {
		for i := range players {
			players[i].Seed = utils.Ptr(i + 1)
		}
	}
	if err := seeding.ValidateSeeding(players); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *TournamentService) checkPlayerCount(format bracket.Format, n int) error {
	if n < bracket.MinPlayers {
		return apperr.Validation("players", "at least %d players are required, got %d", bracket.MinPlayers, n)
	}
	if format != bracket.RoundRobin && n > s.cfg.MaxBracketPlayers {
		return apperr.Validation("players", "at most %d players are supported, got %d", s.cfg.MaxBracketPlayers, n)
	}
	return nil
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	orgID, ok := middleware.GetOrganizationIDFromContext(ctx)
	if !ok {
		return nil, &apperr.TenantMismatchError{Entity: "organization", ID: "none"}
	}
	return s.store.ListTournaments(ctx, orgID)
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, notFound(err, "tournament", id)
	}
	if err := checkTenant(ctx, tournament); err != nil {
		return nil, err
	}

	players, err := s.store.GetPlayers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	tables, err := s.tables.ListTables(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	return &TournamentData{
		Tournament: tournament,
		Players:    players,
		Matches:    matches,
		Tables:     tables,
	}, nil
}
