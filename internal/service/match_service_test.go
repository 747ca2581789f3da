package service

import (
	"encoding/json"
	"testing"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/seeding"
	"github.com/AdamBeresnev/cue-scheduler/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playMatch assigns, starts and completes a match with player A winning.
func playMatch(t *testing.T, svc *testServices, matchID, tableID uuid.UUID) *TransitionResult {
	t.Helper()
	ctx := orgContext()

	m, err := svc.store.GetMatch(ctx, matchID)
	require.NoError(t, err)

	assigned, err := svc.tables.AssignMatchToTable(ctx, matchID, tableID, m.Revision)
	require.NoError(t, err)

	started, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          matchID,
		Event:            matchstate.EventStart,
		ExpectedRevision: assigned.NewRevision,
	})
	require.NoError(t, err)

	result, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          matchID,
		Event:            matchstate.EventComplete,
		ExpectedRevision: started.Match.Revision,
		Payload:          TransitionPayload{WinnerID: m.PlayerAID, ScoreA: utils.Ptr(5), ScoreB: utils.Ptr(3)},
	})
	require.NoError(t, err)
	return result
}

func TestCompleteActiveMatch(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")
	match := matches[0]
	table := tables[0]

	assigned, err := svc.tables.AssignMatchToTable(ctx, match.ID, table.ID, match.Revision)
	require.NoError(t, err)
	started, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventStart,
		ExpectedRevision: assigned.NewRevision,
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Active, started.Match.State)
	require.NotNil(t, started.Match.StartedAt)

	before, err := svc.store.ListEvents(ctx, match.ID)
	require.NoError(t, err)

	result, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventComplete,
		ExpectedRevision: started.Match.Revision,
		Payload:          TransitionPayload{WinnerID: match.PlayerAID, ScoreA: utils.Ptr(5), ScoreB: utils.Ptr(3)},
	})
	require.NoError(t, err)

	completed := result.Match
	assert.Equal(t, matchstate.Completed, completed.State)
	assert.Equal(t, *match.PlayerAID, *completed.WinnerID)
	assert.Equal(t, 5, completed.ScoreA)
	assert.Equal(t, 3, completed.ScoreB)
	assert.NotNil(t, completed.CompletedAt)

	after, err := svc.store.ListEvents(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1, "exactly one event per transition")
	last := after[len(after)-1]
	assert.Equal(t, matchstate.EventComplete, last.Event)
	assert.Equal(t, matchstate.Active, last.FromState)
	assert.Equal(t, matchstate.Completed, last.ToState)
	assert.Equal(t, "referee", last.Actor)
	assert.Equal(t, "tablet-1", last.Device)

	var payload TransitionPayload
	require.NoError(t, json.Unmarshal([]byte(last.Payload), &payload))
	assert.Equal(t, 5, *payload.ScoreA)

	freed, err := svc.tables.tables.GetTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TableAvailable, freed.Status, "completion releases the table")
	assert.Nil(t, freed.CurrentMatchID)

	final, err := svc.store.GetMatch(ctx, matches[2].ID)
	require.NoError(t, err)
	require.NotNil(t, final.PlayerAID)
	assert.Equal(t, *match.PlayerAID, *final.PlayerAID)
	assert.Equal(t, matchstate.Pending, final.State)
}

func TestTransitionErrors(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")
	match := matches[0]

	t.Run("invalid event lists valid next states", func(t *testing.T) {
		_, err := svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventComplete,
			ExpectedRevision: match.Revision,
			Payload:          TransitionPayload{WinnerID: match.PlayerAID},
		})
		var transitionErr *apperr.StateTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, []string{"assigned", "active", "cancelled"}, transitionErr.ValidNext)
	})

	t.Run("start without a table", func(t *testing.T) {
		_, err := svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventStart,
			ExpectedRevision: match.Revision,
		})
		assert.ErrorIs(t, err, apperr.ErrGuardViolation)
	})

	t.Run("stale revision", func(t *testing.T) {
		_, err := svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventCancel,
			ExpectedRevision: match.Revision + 1,
			Payload:          TransitionPayload{Reason: "no show"},
		})
		var lockErr *apperr.OptimisticLockError
		require.ErrorAs(t, err, &lockErr)
		assert.Equal(t, match.Revision, lockErr.Actual)
	})

	t.Run("cancel without a reason", func(t *testing.T) {
		_, err := svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventCancel,
			ExpectedRevision: match.Revision,
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("system events are not accepted", func(t *testing.T) {
		_, err := svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventBye,
			ExpectedRevision: match.Revision,
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("unknown match", func(t *testing.T) {
		_, err := svc.matches.Transition(ctx, TransitionRequest{MatchID: uuid.New(), Event: matchstate.EventStart})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("winner must play in the match", func(t *testing.T) {
		started, err := svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventStart,
			ExpectedRevision: match.Revision,
			Payload:          TransitionPayload{TableID: &tables[0].ID},
		})
		require.NoError(t, err)
		assert.Equal(t, tables[0].ID, *started.Match.TableID, "a ready match can start on a table directly")

		_, err = svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventComplete,
			ExpectedRevision: started.Match.Revision,
			Payload:          TransitionPayload{WinnerID: utils.Ptr(uuid.New())},
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventComplete,
			ExpectedRevision: started.Match.Revision,
		})
		assert.ErrorIs(t, err, apperr.ErrGuardViolation)

		_, err = svc.matches.Transition(ctx, TransitionRequest{
			MatchID:          match.ID,
			Event:            matchstate.EventComplete,
			ExpectedRevision: started.Match.Revision,
			Payload:          TransitionPayload{WinnerID: match.PlayerAID, ScoreA: utils.Ptr(2), ScoreB: utils.Ptr(5)},
		})
		assert.ErrorIs(t, err, apperr.ErrValidation, "the winner cannot have the lower score")

		stored, err := svc.store.GetMatch(ctx, match.ID)
		require.NoError(t, err)
		assert.Equal(t, matchstate.Active, stored.State, "failed transitions leave no trace")
		assert.Equal(t, started.Match.Revision, stored.Revision)
	})
}

func TestSameStateIsNoOp(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")

	result := playMatch(t, svc, matches[0].ID, tables[0].ID)
	before, err := svc.store.ListEvents(ctx, matches[0].ID)
	require.NoError(t, err)

	again, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          matches[0].ID,
		Event:            matchstate.EventComplete,
		ExpectedRevision: result.Match.Revision,
	})
	require.NoError(t, err)
	assert.True(t, again.NoOp)
	assert.Equal(t, result.Match.Revision, again.Match.Revision)

	after, err := svc.store.ListEvents(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestPauseAndResume(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")
	match := matches[0]

	started, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventStart,
		ExpectedRevision: match.Revision,
		Payload:          TransitionPayload{TableID: &tables[0].ID},
	})
	require.NoError(t, err)
	startedAt := *started.Match.StartedAt

	paused, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventPause,
		ExpectedRevision: started.Match.Revision,
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Paused, paused.Match.State)

	table, err := svc.tables.tables.GetTable(ctx, tables[0].ID)
	require.NoError(t, err)
	assert.Equal(t, match.ID, *table.CurrentMatchID, "a paused match keeps its table")

	resumed, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventResume,
		ExpectedRevision: paused.Match.Revision,
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Active, resumed.Match.State)
	assert.True(t, startedAt.Equal(*resumed.Match.StartedAt))
}

func TestForfeitAdvancesOpponent(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")
	match := matches[0]

	started, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventStart,
		ExpectedRevision: match.Revision,
		Payload:          TransitionPayload{TableID: &tables[0].ID},
	})
	require.NoError(t, err)

	result, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventForfeit,
		ExpectedRevision: started.Match.Revision,
		Payload:          TransitionPayload{ForfeitingPlayerID: match.PlayerAID},
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Forfeited, result.Match.State)
	assert.Equal(t, *match.PlayerBID, *result.Match.WinnerID)

	final, err := svc.store.GetMatch(ctx, matches[2].ID)
	require.NoError(t, err)
	assert.Equal(t, *match.PlayerBID, *final.PlayerAID)
}

func TestCancelReleasesAssignedTable(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")
	match := matches[1]

	assigned, err := svc.tables.AssignMatchToTable(ctx, match.ID, tables[0].ID, match.Revision)
	require.NoError(t, err)

	result, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventCancel,
		ExpectedRevision: assigned.NewRevision,
		Payload:          TransitionPayload{Reason: "venue closing"},
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Cancelled, result.Match.State)
	assert.Empty(t, result.Advanced, "a cancelled match sends nobody on")

	table, err := svc.tables.tables.GetTable(ctx, tables[0].ID)
	require.NoError(t, err)
	assert.Nil(t, table.CurrentMatchID)
	assert.Equal(t, bracket.TableAvailable, table.Status)
}

func TestUnassignThroughTransition(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	_, matches, tables := startedTournament(t, svc, 4, "T1")
	match := matches[0]

	assigned, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventAssignTable,
		ExpectedRevision: match.Revision,
		Payload:          TransitionPayload{TableID: &tables[0].ID},
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Assigned, assigned.Match.State)

	unassigned, err := svc.matches.Transition(ctx, TransitionRequest{
		MatchID:          match.ID,
		Event:            matchstate.EventUnassign,
		ExpectedRevision: assigned.Match.Revision,
	})
	require.NoError(t, err)
	assert.Equal(t, matchstate.Ready, unassigned.Match.State)
	assert.Nil(t, unassigned.Match.TableID)

	table, err := svc.tables.tables.GetTable(ctx, tables[0].ID)
	require.NoError(t, err)
	assert.Nil(t, table.CurrentMatchID)
}

func TestPlayingEveryMatchCompletesTournament(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	tournament, matches, tables := startedTournament(t, svc, 4, "T1", "T2")

	first := playMatch(t, svc, matches[0].ID, tables[0].ID)
	assert.Empty(t, first.Advanced, "the final still waits for its second player")

	second := playMatch(t, svc, matches[1].ID, tables[1].ID)
	require.Len(t, second.Advanced, 1)
	assert.Equal(t, matchstate.Ready, second.Advanced[0].State)
	assert.False(t, second.TournamentCompleted)

	final := playMatch(t, svc, matches[2].ID, tables[0].ID)
	assert.True(t, final.TournamentCompleted)

	data, err := svc.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, data.Tournament.Status)

	events, err := svc.matches.ListEvents(ctx, matches[2].ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, matchstate.EventResolve, events[0].Event)
	assert.Equal(t, systemActor, events[0].Actor)
}

func TestDoubleEliminationRoutesLosers(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()

	tournament, err := svc.tournaments.CreateTournament(ctx, TournamentInput{
		Name:    "Double",
		Format:  bracket.DoubleElimination,
		Players: playerInputs(4),
	})
	require.NoError(t, err)
	_, err = svc.tournaments.GenerateBracket(ctx, tournament.ID, seeding.Options{})
	require.NoError(t, err)
	tables, err := svc.tables.CreateTablesBulk(ctx, tournament.ID, []string{"T1"})
	require.NoError(t, err)

	matches, err := svc.matches.ListMatches(ctx, tournament.ID)
	require.NoError(t, err)
	opener := matches[0]
	require.Equal(t, bracket.WinnersSide, opener.Bracket)

	playMatch(t, svc, opener.ID, tables[0].ID)

	g := bracket.NewGraph(matches)
	loserTarget, ok := g.Lookup(opener.LoserFeedsInto.Key())
	require.True(t, ok)

	stored, err := svc.store.GetMatch(ctx, loserTarget.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPlayer(*opener.PlayerBID), "the loser drops to the losers bracket")
}
