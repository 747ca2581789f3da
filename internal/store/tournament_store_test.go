package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/AdamBeresnev/cue-scheduler/internal/utils"
	"github.com/AdamBeresnev/cue-scheduler/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrganizationID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	source, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err, "Failed to open embedded migrations")

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

func createTestTournament(t *testing.T, db *sqlx.DB, store *TournamentStore) *bracket.Tournament {
	t.Helper()

	tournament := &bracket.Tournament{
		ID:             uuid.New(),
		OrganizationID: testOrganizationID,
		Name:           "Test Tournament",
		Status:         bracket.TournamentDraft,
		Format:         bracket.SingleElimination,
		RaceTo:         5,
		CreatedAt:      time.Now().UTC(),
	}
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = store.CreateTournament(context.Background(), tx, tournament)
	require.NoError(t, err)
	err = tx.Commit()
	require.NoError(t, err)
	return tournament
}

func createTestPlayers(t *testing.T, db *sqlx.DB, store *TournamentStore, tournamentID uuid.UUID, n int) []bracket.Player {
	t.Helper()

	players := make([]bracket.Player, n)
	for i := range players {
		players[i] = bracket.Player{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Name:         fmt.Sprintf("Player %d", i+1),
			Seed:         utils.Ptr(i + 1),
			CreatedAt:    time.Now().UTC(),
		}
	}
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePlayers(context.Background(), tx, players))
	require.NoError(t, tx.Commit())
	return players
}

func TestCreateTournament(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)

	fetchedTournament, err := store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetchedTournament.ID)
	assert.Equal(t, tournament.OrganizationID, fetchedTournament.OrganizationID)
	assert.Equal(t, tournament.Name, fetchedTournament.Name)
	assert.Equal(t, tournament.Status, fetchedTournament.Status)
	assert.Equal(t, tournament.Format, fetchedTournament.Format)
	assert.Equal(t, tournament.RaceTo, fetchedTournament.RaceTo)
	assert.WithinDuration(t, tournament.CreatedAt, fetchedTournament.CreatedAt, time.Second)

	listed, err := store.ListTournaments(context.Background(), testOrganizationID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = store.GetTournament(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTournamentStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.UpdateTournamentStatusTx(context.Background(), tx, tournament.ID, bracket.TournamentStarted))
	assert.ErrorIs(t, store.UpdateTournamentStatusTx(context.Background(), tx, uuid.New(), bracket.TournamentStarted), ErrNotFound)
	require.NoError(t, tx.Commit())

	fetched, err := store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentStarted, fetched.Status)
}

func TestCreatePlayers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)

	players := []bracket.Player{
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Player 2", Seed: utils.Ptr(2), RatingSystem: utils.StringOrNil("fargo"), RatingValue: utils.StringOrNil("612"), CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Player 1", Seed: utils.Ptr(1), CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), TournamentID: tournament.ID, Name: "Unseeded", CreatedAt: time.Now().UTC()},
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePlayers(context.Background(), tx, players))
	require.NoError(t, tx.Commit())

	fetchedPlayers, err := store.GetPlayers(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetchedPlayers, 3)

	assert.Equal(t, "Player 1", fetchedPlayers[0].Name)
	assert.Nil(t, fetchedPlayers[0].RatingValue)
	assert.Equal(t, "Player 2", fetchedPlayers[1].Name)
	assert.Equal(t, "612", *fetchedPlayers[1].RatingValue)
	assert.Equal(t, "fargo", *fetchedPlayers[1].RatingSystem)
	assert.Nil(t, fetchedPlayers[2].Seed)
}

func TestDeletePlayerAndReseed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	players := createTestPlayers(t, db, store, tournament.ID, 3)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.DeletePlayerTx(context.Background(), tx, tournament.ID, players[0].ID))
	assert.ErrorIs(t, store.DeletePlayerTx(context.Background(), tx, tournament.ID, players[0].ID), ErrNotFound)

	players[1].Seed = utils.Ptr(1)
	players[2].Seed = utils.Ptr(2)
	require.NoError(t, store.UpdatePlayerSeedsTx(context.Background(), tx, players[1:]))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetPlayers(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, players[1].ID, fetched[0].ID)
	assert.Equal(t, 1, *fetched[0].Seed)
	assert.Equal(t, 2, *fetched[1].Seed)
}

func TestCreateMatches(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	players := createTestPlayers(t, db, store, tournament.ID, 5)

	s, err := bracket.GenerateDoubleElimination(tournament.ID, players, bracket.Options{Now: time.Now().UTC()})
	require.NoError(t, err)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = store.CreateMatches(context.Background(), tx, s.Matches)
	require.NoError(t, err)
	err = tx.Commit()
	require.NoError(t, err)

	fetchedMatches, err := store.GetMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetchedMatches, len(s.Matches))

	for i, m := range s.Matches {
		fetched := fetchedMatches[i]
		assert.Equal(t, m.ID, fetched.ID)
		assert.Equal(t, m.Key(), fetched.Key())
		assert.Equal(t, m.State, fetched.State)
		assert.Equal(t, m.IsBye, fetched.IsBye)
		assert.Equal(t, m.FeedsInto, fetched.FeedsInto)
		assert.Equal(t, m.LoserFeedsInto, fetched.LoserFeedsInto)
		assert.Equal(t, m.PlayerAID, fetched.PlayerAID)
		assert.Equal(t, m.WinnerID, fetched.WinnerID)
		assert.Equal(t, 1, fetched.Revision)
	}

	// The persisted structure still routes correctly.
	rebuilt := &bracket.Structure{Format: s.Format, TotalRounds: s.TotalRounds, Matches: fetchedMatches}
	assert.Empty(t, bracket.ValidateBracket(rebuilt))
}

func TestUpdateMatchComparesRevision(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	players := createTestPlayers(t, db, store, tournament.ID, 2)

	s, err := bracket.GenerateSingleElimination(tournament.ID, players, bracket.Options{Now: time.Now().UTC()})
	require.NoError(t, err)
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(context.Background(), tx, s.Matches))
	require.NoError(t, tx.Commit())

	first, err := store.GetMatch(context.Background(), s.Matches[0].ID)
	require.NoError(t, err)
	stale := *first

	first.State = matchstate.Cancelled
	tx, err = db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.UpdateMatchTx(context.Background(), tx, first))
	assert.Equal(t, 2, first.Revision)

	stale.State = matchstate.Active
	err = store.UpdateMatchTx(context.Background(), tx, &stale)
	assert.True(t, errors.Is(err, ErrStaleRevision))
	assert.Equal(t, 1, stale.Revision)
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatch(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, matchstate.Cancelled, fetched.State)
	assert.Equal(t, 2, fetched.Revision)

	_, err = store.GetMatch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendEvents(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	players := createTestPlayers(t, db, store, tournament.ID, 2)
	s, err := bracket.GenerateSingleElimination(tournament.ID, players, bracket.Options{Now: time.Now().UTC()})
	require.NoError(t, err)

	matchID := s.Matches[0].ID
	now := time.Now().UTC()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(context.Background(), tx, s.Matches))
	for _, to := range []matchstate.State{matchstate.Assigned, matchstate.Active, matchstate.Completed} {
		e := &bracket.TransitionEvent{MatchID: matchID, TournamentID: tournament.ID, Actor: "referee", ToState: to, CreatedAt: now}
		require.NoError(t, store.AppendEventTx(context.Background(), tx, e))
		assert.NotEmpty(t, e.ID)
	}
	require.NoError(t, tx.Commit())

	events, err := store.ListEvents(context.Background(), matchID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, matchstate.Assigned, events[0].ToState)
	assert.Equal(t, matchstate.Completed, events[2].ToState)
	assert.Equal(t, "{}", events[0].Payload)

	all, err := store.ListTournamentEvents(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNewEventIDIsMonotonic(t *testing.T) {
	at := time.Now()
	prev := NewEventID(at)
	for range 100 {
		next := NewEventID(at)
		assert.Greater(t, next, prev)
		prev = next
	}
}
