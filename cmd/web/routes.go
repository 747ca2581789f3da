package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/config"
	"github.com/AdamBeresnev/cue-scheduler/internal/httputil"
	"github.com/AdamBeresnev/cue-scheduler/internal/middleware"
	"github.com/AdamBeresnev/cue-scheduler/internal/seeding"
	"github.com/AdamBeresnev/cue-scheduler/internal/service"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type app struct {
	tournaments *service.TournamentService
	tables      *service.TableService
	matches     *service.MatchService
	scheduler   *service.SchedulerService
}

func newApp(database *sqlx.DB, cfg config.SchedulingConfig) *app {
	tournamentStore := store.NewTournamentStore(database)
	tableStore := store.NewTableStore(database)
	tableService := service.NewTableService(database, tournamentStore, tableStore)

	return &app{
		tournaments: service.NewTournamentService(database, tournamentStore, tableStore, cfg),
		tables:      tableService,
		matches:     service.NewMatchService(database, tournamentStore, tableService),
		scheduler:   service.NewSchedulerService(tournamentStore, tableService, cfg),
	}
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOrganization)

		r.Get("/tournaments", a.listTournaments)
		r.Post("/tournaments", a.createTournament)
		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Get("/", a.getTournament)
			r.Post("/bracket", a.generateBracket)
			r.Delete("/players/{playerID}", a.withdrawPlayer)
			r.Get("/players/{playerID}/wait", a.playerWaitTime)
			r.Get("/matches", a.listMatches)
			r.Get("/tables", a.listTables)
			r.Post("/tables", a.createTables)
			r.Post("/schedule", a.autoAssign)
			r.Get("/queue", a.queueStatus)
			r.Get("/etas", a.matchETAs)
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", a.getMatch)
			r.Get("/events", a.listEvents)
			r.Post("/transitions", a.transition)
			r.Post("/assign", a.assign)
		})

		r.Route("/tables/{tableID}", func(r chi.Router) {
			r.Delete("/", a.deleteTable)
			r.Post("/release", a.releaseTable)
			r.Post("/block", a.blockTable)
			r.Delete("/block", a.unblockTable)
			r.Put("/maintenance", a.setMaintenance)
		})
	})

	return r
}

func idParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation(name, "malformed id")
	}
	return id, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("body", "malformed JSON: %v", err)
	}
	return nil
}

func (a *app) listTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := a.tournaments.ListTournaments(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournaments)
}

func (a *app) createTournament(w http.ResponseWriter, r *http.Request) {
	var input service.TournamentInput
	if err := decode(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tournament, err := a.tournaments.CreateTournament(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tournament)
}

func (a *app) getTournament(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	data, err := a.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (a *app) generateBracket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var opts seeding.Options
	if err := decode(r, &opts); err != nil {
		httputil.WriteError(w, err)
		return
	}
	structure, err := a.tournaments.GenerateBracket(r.Context(), id, opts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, structure)
}

func (a *app) withdrawPlayer(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	playerID, err := idParam(r, "playerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	players, err := a.tournaments.WithdrawPlayer(r.Context(), tournamentID, playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, players)
}

func (a *app) playerWaitTime(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	playerID, err := idParam(r, "playerID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	wait, err := a.scheduler.PlayerWaitTime(r.Context(), tournamentID, playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if wait == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wait)
}

func (a *app) listMatches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	matches, err := a.matches.ListMatches(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, matches)
}

func (a *app) listTables(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tables, err := a.tables.ListTables(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tables)
}

func (a *app) createTables(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		Labels []string `json:"labels"`
	}
	if err := decode(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tables, err := a.tables.CreateTablesBulk(r.Context(), id, body.Labels)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tables)
}

func (a *app) autoAssign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	results, err := a.scheduler.AutoAssignTables(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}

func (a *app) queueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := a.scheduler.GetQueueStatus(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (a *app) matchETAs(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	etas, err := a.scheduler.MatchETAs(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, etas)
}

func (a *app) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := a.matches.GetMatch(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (a *app) listEvents(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := a.matches.ListEvents(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (a *app) transition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req service.TransitionRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.MatchID = id
	result, err := a.matches.Transition(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (a *app) assign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		TableID          uuid.UUID `json:"tableId"`
		ExpectedRevision int       `json:"expectedRevision"`
	}
	if err := decode(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := a.tables.AssignMatchToTable(r.Context(), id, body.TableID, body.ExpectedRevision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (a *app) deleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tableID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := a.tables.DeleteTable(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) releaseTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tableID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	table, err := a.tables.ReleaseTable(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, table)
}

func (a *app) blockTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tableID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		Until time.Time `json:"until"`
	}
	if err := decode(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	table, err := a.tables.BlockTableUntil(r.Context(), id, body.Until)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, table)
}

func (a *app) unblockTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tableID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	table, err := a.tables.UnblockTable(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, table)
}

func (a *app) setMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tableID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body struct {
		On bool `json:"on"`
	}
	if err := decode(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	table, err := a.tables.SetMaintenance(r.Context(), id, body.On)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, table)
}
