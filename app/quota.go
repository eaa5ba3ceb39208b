package app

import (
	"context"
	"database/sql"
	"errors"

	"github.com/arensoandre/expert-cof/app/models"
)

// QuotaMessage is the user-facing reason for a 403.
const QuotaMessage = "Limite de 3 análises gratuitas atingido. Assine o plano Profissional para continuar."

// enforceLifetimeQuota returns a quotaError when a free-plan user has used up
// the lifetime allowance. Faults while checking come back as recoverable:
// the caller fails open rather than blocking users on an internal bug.
func (a *App) enforceLifetimeQuota(ctx context.Context, userID string) error {
	plan, err := a.store.GetUserPlan(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			plan = models.PlanFree
		} else {
			return recoverable("quota: load plan", err)
		}
	}
	if plan != models.PlanFree {
		return nil
	}

	used, err := a.store.CountAnalysesByUser(ctx, userID)
	if err != nil {
		return recoverable("quota: count analyses", err)
	}
	if used >= a.cfg.Upload.FreeLimit {
		return quotaError{Limit: a.cfg.Upload.FreeLimit, Used: used}
	}
	return nil
}
