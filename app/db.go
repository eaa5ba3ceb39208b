package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/arensoandre/expert-cof/app/config"
	"github.com/arensoandre/expert-cof/app/models"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store over the Supabase-managed Postgres.
type PostgresStore struct {
	db *sql.DB
}

// MustInitDB opens the Postgres pool and panics/logs fatally on error.
func MustInitDB(cfg *config.Config) *PostgresStore {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s",
		cfg.DB.Username,
		cfg.DB.Password,
		cfg.DB.URL,
		cfg.DB.Port,
	)

	d, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}

	if err := d.Ping(); err != nil {
		log.Fatalf("db.Ping: %v", err)
	}

	log.Println("Connected to Postgres")
	return &PostgresStore{db: d}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertUser creates a user row if it does not already exist. The identity
// provider owns account creation; this only mirrors the row locally.
func (s *PostgresStore) UpsertUser(ctx context.Context, id, email string) error {
	if id == "" {
		return nil
	}
	const q = `
		INSERT INTO users (id, email, plan)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := s.db.ExecContext(ctx, q, id, nullIfEmpty(email), models.PlanFree)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (models.User, error) {
	var (
		user     models.User
		email    sql.NullString
		stripeID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT email, plan, stripe_customer_id
		FROM users
		WHERE id = $1;
	`, id).Scan(&email, &user.Plan, &stripeID)
	if err != nil {
		return models.User{}, err
	}
	user.ID = id
	user.Email = email.String
	user.StripeCustomerID = stripeID.String
	return user, nil
}

func (s *PostgresStore) GetUserPlan(ctx context.Context, id string) (models.Plan, error) {
	var plan models.Plan
	err := s.db.QueryRowContext(ctx, `
		SELECT plan
		FROM users
		WHERE id = $1;
	`, id).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		// No record yet means the default tier.
		return models.PlanFree, nil
	}
	if err != nil {
		return "", err
	}
	if plan == "" {
		plan = models.PlanFree
	}
	return plan, nil
}

func (s *PostgresStore) SetUserPlan(ctx context.Context, id string, plan models.Plan) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET plan = $1
		WHERE id = $2;
	`, plan, id)
	return err
}

func (s *PostgresStore) SetUserPlanByStripeCustomer(ctx context.Context, stripeCustomerID string, plan models.Plan) error {
	if stripeCustomerID == "" {
		return errors.New("missing stripe customer id")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET plan = $1
		WHERE stripe_customer_id = $2;
	`, plan, stripeCustomerID)
	return err
}

func (s *PostgresStore) SetStripeCustomerID(ctx context.Context, id, stripeCustomerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stripe_customer_id = $1
		WHERE id = $2;
	`, stripeCustomerID, id)
	return err
}

func (s *PostgresStore) CountAnalysesByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM analyses
		WHERE user_id = $1;
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) FindAnalysisByHash(ctx context.Context, fileHash string) (*models.Analysis, error) {
	var (
		rec       models.Analysis
		franchise sql.NullString
		riskJSON  []byte
		extraJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, franchise_name, file_path, risk_analysis, extracted_data, status, created_at
		FROM analyses
		WHERE file_hash = $1
		ORDER BY created_at
		LIMIT 1;
	`, fileHash).Scan(
		&rec.ID,
		&rec.UserID,
		&franchise,
		&rec.FilePath,
		&riskJSON,
		&extraJSON,
		&rec.Status,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.FileHash = fileHash
	rec.FranchiseName = franchise.String
	if len(riskJSON) > 0 {
		var result models.AnalysisResult
		if err := json.Unmarshal(riskJSON, &result); err != nil {
			return nil, fmt.Errorf("decode risk_analysis for hash %s: %w", fileHash, err)
		}
		rec.RiskAnalysis = &result
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &rec.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted_data for hash %s: %w", fileHash, err)
		}
	}
	return &rec, nil
}

func (s *PostgresStore) UserHasAnalysis(ctx context.Context, userID, fileHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM analyses WHERE user_id = $1 AND file_hash = $2
		);
	`, userID, fileHash).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) InsertAnalysis(ctx context.Context, analysis *models.Analysis) error {
	riskJSON, err := json.Marshal(analysis.RiskAnalysis)
	if err != nil {
		return err
	}
	extraJSON, err := json.Marshal(analysis.ExtractedData)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO analyses (user_id, franchise_name, file_path, file_hash, risk_analysis, extracted_data, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = s.db.ExecContext(
		ctx,
		q,
		analysis.UserID,
		nullIfEmpty(analysis.FranchiseName),
		analysis.FilePath,
		analysis.FileHash,
		riskJSON,
		extraJSON,
		analysis.Status,
	)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
