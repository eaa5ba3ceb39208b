package app

import (
	"context"

	"github.com/arensoandre/expert-cof/app/models"
)

// Store is the row storage the pipeline needs: users with their plan and
// billing link, and analyses addressed by content hash and owner.
type Store interface {
	Ping(ctx context.Context) error

	UpsertUser(ctx context.Context, id, email string) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserPlan(ctx context.Context, id string) (models.Plan, error)
	SetUserPlan(ctx context.Context, id string, plan models.Plan) error
	SetUserPlanByStripeCustomer(ctx context.Context, stripeCustomerID string, plan models.Plan) error
	SetStripeCustomerID(ctx context.Context, id, stripeCustomerID string) error

	CountAnalysesByUser(ctx context.Context, userID string) (int, error)
	// FindAnalysisByHash returns the oldest row for the hash system-wide,
	// or (nil, nil) when no analysis with that fingerprint exists.
	FindAnalysisByHash(ctx context.Context, fileHash string) (*models.Analysis, error)
	UserHasAnalysis(ctx context.Context, userID, fileHash string) (bool, error)
	InsertAnalysis(ctx context.Context, analysis *models.Analysis) error
}
