package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/middleware"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type MatchService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	tables *TableService
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, tables *TableService) *MatchService {
	return &MatchService{db: db, store: store, tables: tables}
}

// TransitionPayload carries what individual events need: a winner and scores to complete, a reason to
// cancel or abandon, the forfeiting player, or a table to start on.
type TransitionPayload struct {
	WinnerID           *uuid.UUID `json:"winnerId,omitempty"`
	ScoreA             *int       `json:"scoreA,omitempty"`
	ScoreB             *int       `json:"scoreB,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	ForfeitingPlayerID *uuid.UUID `json:"forfeitingPlayerId,omitempty"`
	TableID            *uuid.UUID `json:"tableId,omitempty"`
}

type TransitionRequest struct {
	MatchID          uuid.UUID         `json:"matchId"`
	Event            matchstate.Event  `json:"event"`
	ExpectedRevision int               `json:"expectedRevision"`
	Actor            string            `json:"actor"`
	Device           string            `json:"device"`
	Payload          TransitionPayload `json:"payload"`
}

type TransitionResult struct {
	Match *bracket.Match   `json:"match"`
	From  matchstate.State `json:"from"`
	NoOp  bool             `json:"noOp"`
	// Advanced are the matches that changed state because players moved on from this one.
	Advanced            []bracket.Match `json:"advanced"`
	TournamentCompleted bool            `json:"tournamentCompleted"`
}

// Transition applies one lifecycle event to a match. The state change, its event record, the table
// release and the routing of players into later matches commit together or not at all.
func (s *MatchService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if req.Actor != "" {
		ctx = middleware.WithActor(ctx, req.Actor, req.Device)
	}
	switch req.Event {
	case matchstate.EventAssignTable:
		return s.assign(ctx, req)
	case matchstate.EventResolve, matchstate.EventBye:
		return nil, apperr.Validation("event", "%s is applied automatically as players advance", req.Event)
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.store.GetMatchTx(ctx, tx, req.MatchID)
	if err != nil {
		return nil, notFound(err, "match", req.MatchID)
	}
	tournament, err := s.tables.tournamentTx(ctx, tx, m.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := checkRevision(m, req.ExpectedRevision); err != nil {
		return nil, err
	}

	from := m.State
	if matchstate.IsNoOp(from, req.Event) {
		return &TransitionResult{Match: m, From: from, NoOp: true}, nil
	}

	facts, err := transitionFacts(m, req)
	if err != nil {
		return nil, err
	}

	// A ready match may start straight away on a table given with the request.
	var bind *bracket.Table
	if req.Event == matchstate.EventStart && m.TableID == nil && req.Payload.TableID != nil {
		bind, err = s.tables.tableTx(ctx, tx, *req.Payload.TableID)
		if err != nil {
			return nil, err
		}
		if bind.TournamentID != m.TournamentID {
			return nil, &apperr.TenantMismatchError{Entity: "table", ID: bind.ID.String()}
		}
		if err := tableConflict(bind, m.ID, now); err != nil {
			return nil, err
		}
		facts.HasTable = true
	}

	next, err := matchstate.Evaluate(from, req.Event, facts)
	if err != nil {
		return nil, err
	}

	heldTable := m.TableID
	applyEvent(m, req, now)
	if bind != nil {
		m.TableID = &bind.ID
	}
	m.State = next
	if err := updateMatch(ctx, tx, s.store, m); err != nil {
		return nil, err
	}
	if err := recordEvent(ctx, tx, s.store, m, req.Event, from, req.Payload, now); err != nil {
		return nil, err
	}

	if bind != nil {
		bind.Status = bracket.TableInUse
		bind.CurrentMatchID = &m.ID
		if err := s.tables.tables.UpdateTableTx(ctx, tx, bind); err != nil {
			return nil, fmt.Errorf("failed to update table: %w", err)
		}
	}
	if heldTable != nil && (matchstate.IsTerminal(next) || req.Event == matchstate.EventUnassign) {
		if err := s.tables.releaseTx(ctx, tx, *heldTable, m.ID); err != nil {
			return nil, err
		}
	}

	result := &TransitionResult{Match: m, From: from}
	if matchstate.IsTerminal(next) {
		if err := s.settleTx(ctx, tx, tournament, m, now, result); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("match_id", m.ID.String()).
		Str("event", string(req.Event)).
		Str("from", string(from)).
		Str("to", string(next)).
		Int("revision", m.Revision).
		Int("advanced", len(result.Advanced)).
		Msg("match transitioned")
	if result.TournamentCompleted {
		log.Info().Str("tournament_id", tournament.ID.String()).Msg("tournament completed")
	}
	return result, nil
}

func (s *MatchService) assign(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if req.Payload.TableID == nil {
		return nil, apperr.Validation("tableId", "assign_table requires a table")
	}
	res, err := s.tables.AssignMatchToTable(ctx, req.MatchID, *req.Payload.TableID, req.ExpectedRevision)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMatch(ctx, res.MatchID)
	if err != nil {
		return nil, notFound(err, "match", res.MatchID)
	}
	return &TransitionResult{Match: m, From: matchstate.Ready}, nil
}

// transitionFacts checks the payload against the match and turns it into guard facts.
func transitionFacts(m *bracket.Match, req TransitionRequest) (matchstate.Facts, error) {
	facts := matchFacts(m, m.TableID)
	facts.Reason = req.Payload.Reason
	p := req.Payload

	switch req.Event {
	case matchstate.EventComplete:
		facts.HasWinner = false
		if p.WinnerID == nil {
			break
		}
		if !m.HasPlayer(*p.WinnerID) {
			return facts, apperr.Validation("winnerId", "player %s is not in this match", p.WinnerID)
		}
		if err := checkScores(m, *p.WinnerID, p.ScoreA, p.ScoreB); err != nil {
			return facts, err
		}
		facts.HasWinner = true
	case matchstate.EventForfeit:
		if p.ForfeitingPlayerID == nil {
			break
		}
		if _, ok := m.Opponent(*p.ForfeitingPlayerID); !ok {
			return facts, apperr.Validation("forfeitingPlayerId", "player %s is not in this match", p.ForfeitingPlayerID)
		}
		facts.ForfeitingPlayer = true
	}
	return facts, nil
}

func checkScores(m *bracket.Match, winnerID uuid.UUID, scoreA, scoreB *int) error {
	if (scoreA != nil && *scoreA < 0) || (scoreB != nil && *scoreB < 0) {
		return apperr.Validation("score", "scores cannot be negative")
	}
	if scoreA == nil || scoreB == nil {
		return nil
	}
	winnerScore, loserScore := *scoreA, *scoreB
	if m.PlayerBID != nil && *m.PlayerBID == winnerID {
		winnerScore, loserScore = loserScore, winnerScore
	}
	if winnerScore <= loserScore {
		return apperr.Validation("score", "winner scored %d against %d", winnerScore, loserScore)
	}
	return nil
}

// applyEvent sets the fields that come with an event: timestamps, result and table binding.
func applyEvent(m *bracket.Match, req TransitionRequest, now time.Time) {
	p := req.Payload
	switch req.Event {
	case matchstate.EventStart:
		if m.StartedAt == nil {
			m.StartedAt = &now
		}
	case matchstate.EventComplete:
		winner := *p.WinnerID
		m.WinnerID = &winner
		if p.ScoreA != nil {
			m.ScoreA = *p.ScoreA
		}
		if p.ScoreB != nil {
			m.ScoreB = *p.ScoreB
		}
		m.CompletedAt = &now
	case matchstate.EventForfeit:
		opponent, _ := m.Opponent(*p.ForfeitingPlayerID)
		m.WinnerID = &opponent
		m.CompletedAt = &now
	case matchstate.EventCancel, matchstate.EventAbandon:
		m.CompletedAt = &now
	case matchstate.EventUnassign:
		m.TableID = nil
	}
}

// settleTx moves the players of a finished match on to the matches they feed, then closes the tournament
// once nothing is left to play.
func (s *MatchService) settleTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, m *bracket.Match, now time.Time, result *TransitionResult) error {
	matches, err := s.store.GetMatchesTx(ctx, tx, tournament.ID)
	if err != nil {
		return fmt.Errorf("failed to get matches: %w", err)
	}
	g := bracket.NewGraph(matches)

	if m.WinnerID != nil {
		changes, err := g.Advance(m.Key(), now)
		if err != nil {
			return fmt.Errorf("failed to advance players from match %s: %w", m.ID, err)
		}

		for _, k := range g.Touched() {
			target, _ := g.Lookup(k)
			if err := updateMatch(ctx, tx, s.store, target); err != nil {
				return err
			}
		}

		sysCtx := asSystem(ctx)
		for _, c := range changes {
			target, _ := g.Lookup(c.Key)
			if err := recordEvent(sysCtx, tx, s.store, target, c.Event, c.From, nil, now); err != nil {
				return err
			}
			result.Advanced = append(result.Advanced, *target)
		}
	}

	for i := range g.Matches {
		if !matchstate.IsTerminal(g.Matches[i].State) {
			return nil
		}
	}
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentCompleted); err != nil {
		return fmt.Errorf("failed to complete tournament: %w", err)
	}
	result.TournamentCompleted = true
	return nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, notFound(err, "match", matchID)
	}
	if err := s.authorize(ctx, m.TournamentID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MatchService) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	if err := s.authorize(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.store.GetMatches(ctx, tournamentID)
}

// ListEvents returns the transition history of a match, oldest first.
func (s *MatchService) ListEvents(ctx context.Context, matchID uuid.UUID) ([]bracket.TransitionEvent, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, matchID)
}

func (s *MatchService) authorize(ctx context.Context, tournamentID uuid.UUID) error {
	tournament, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return notFound(err, "tournament", tournamentID)
	}
	return checkTenant(ctx, tournament)
}
