package service

import (
	"testing"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoAssignTables(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	tournament, matches, tables := startedTournament(t, svc, 8, "T1", "T2")

	_, err := svc.tables.SetMaintenance(ctx, tables[1].ID, true)
	require.NoError(t, err)

	results, err := svc.scheduler.AutoAssignTables(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, results, 1, "fewer tables than eligible matches leaves the rest queued")
	assert.Equal(t, matches[0].ID, results[0].MatchID, "ties go to the lower position")
	assert.Equal(t, tables[0].ID, results[0].TableID)
	assert.Equal(t, 2, results[0].NewRevision)

	results, err = svc.scheduler.AutoAssignTables(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, results, "no table is free")

	_, err = svc.tables.SetMaintenance(ctx, tables[1].ID, false)
	require.NoError(t, err)
	extra, err := svc.tables.CreateTablesBulk(ctx, tournament.ID, []string{"T3", "T4", "T5", "T6"})
	require.NoError(t, err)
	require.Len(t, extra, 4)

	results, err = svc.scheduler.AutoAssignTables(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, results, 3, "only three first round matches are left")

	status, err := svc.scheduler.GetQueueStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Assigned)
	assert.Equal(t, 3, status.Pending)
	assert.Equal(t, 0, status.Eligible)
	assert.Equal(t, 2, status.AvailableTables, "excess tables stay available")
	assert.Equal(t, 4, status.InUseTables)
}

func TestQueueStatusIsReadOnly(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	tournament, _, _ := startedTournament(t, svc, 4, "T1")

	before, err := svc.store.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)

	status, err := svc.scheduler.GetQueueStatus(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Ready)
	assert.Equal(t, 2, status.Eligible)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 1, status.AvailableTables)
	require.Len(t, status.Queue, 3)
	assert.Greater(t, status.Queue[0].Priority, status.Queue[2].Priority)

	after, err := svc.store.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMatchETAs(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	tournament, matches, _ := startedTournament(t, svc, 4, "T1", "T2")

	etas, err := svc.scheduler.MatchETAs(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, etas, 3)

	byMatch := map[uuid.UUID]int{}
	for i, e := range etas {
		byMatch[e.MatchID] = i
		assert.InDelta(t, 0.5, e.Confidence, 1e-9, "no history and no ratings")
	}

	first := etas[byMatch[matches[0].ID]]
	final := etas[byMatch[matches[2].ID]]
	assert.Equal(t, 38*time.Minute, first.Duration)
	assert.Equal(t, 38*time.Minute, final.Start.Sub(first.Start), "the final waits for both semi finals")
	assert.NotEqual(t, *etas[0].TableID, *etas[1].TableID)
}

func TestPlayerWaitTime(t *testing.T) {
	svc := setupTestDB(t)
	ctx := orgContext()
	tournament, matches, tables := startedTournament(t, svc, 4, "T1")

	wait, err := svc.scheduler.PlayerWaitTime(ctx, tournament.ID, *matches[1].PlayerAID)
	require.NoError(t, err)
	require.NotNil(t, wait)
	assert.Equal(t, matches[1].ID, wait.MatchID)
	assert.Equal(t, 2, wait.QueuePosition)
	assert.Equal(t, 38, wait.Minutes, "one table, so the second match waits for the first")

	_, err = svc.scheduler.PlayerWaitTime(ctx, tournament.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// The loser of the first match has nothing left to play.
	playMatch(t, svc, matches[0].ID, tables[0].ID)
	wait, err = svc.scheduler.PlayerWaitTime(ctx, tournament.ID, *matches[0].PlayerBID)
	require.NoError(t, err)
	assert.Nil(t, wait)

	m, err := svc.store.GetMatch(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, matchstate.Completed, m.State)
}
