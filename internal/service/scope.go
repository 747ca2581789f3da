package service

import (
	"context"
	"errors"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/middleware"
	"github.com/AdamBeresnev/cue-scheduler/internal/store"
	"github.com/google/uuid"
)

// checkTenant enforces that the tournament belongs to the organization acting in ctx.
func checkTenant(ctx context.Context, tournament *bracket.Tournament) error {
	orgID, ok := middleware.GetOrganizationIDFromContext(ctx)
	if !ok || orgID != tournament.OrganizationID {
		return &apperr.TenantMismatchError{Entity: "tournament", ID: tournament.ID.String()}
	}
	return nil
}

// notFound converts a store miss into the typed error callers see.
func notFound(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}
