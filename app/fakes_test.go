package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/arensoandre/expert-cof/app/models"

	"github.com/stripe/stripe-go/v79"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	analyses []*models.Analysis

	pingErr  error
	planErr  error
	countErr error
	findErr  error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}}
}

func (s *memStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *memStore) UpsertUser(ctx context.Context, id, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		s.users[id] = models.User{ID: id, Email: email, Plan: models.PlanFree}
	}
	return nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (s *memStore) GetUserPlan(ctx context.Context, id string) (models.Plan, error) {
	if s.planErr != nil {
		return "", s.planErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.Plan == "" {
		return models.PlanFree, nil
	}
	return user.Plan, nil
}

func (s *memStore) SetUserPlan(ctx context.Context, id string, plan models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[id]
	user.ID = id
	user.Plan = plan
	s.users[id] = user
	return nil
}

func (s *memStore) SetUserPlanByStripeCustomer(ctx context.Context, stripeCustomerID string, plan models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, user := range s.users {
		if user.StripeCustomerID == stripeCustomerID {
			user.Plan = plan
			s.users[id] = user
			return nil
		}
	}
	return errors.New("no user for stripe customer")
}

func (s *memStore) SetStripeCustomerID(ctx context.Context, id, stripeCustomerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[id]
	user.ID = id
	user.StripeCustomerID = stripeCustomerID
	s.users[id] = user
	return nil
}

func (s *memStore) CountAnalysesByUser(ctx context.Context, userID string) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.analyses {
		if rec.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) FindAnalysisByHash(ctx context.Context, fileHash string) (*models.Analysis, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.analyses {
		if rec.FileHash == fileHash {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *memStore) UserHasAnalysis(ctx context.Context, userID, fileHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.analyses {
		if rec.UserID == userID && rec.FileHash == fileHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) InsertAnalysis(ctx context.Context, analysis *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *analysis
	stored.CreatedAt = time.Now()
	s.analyses = append(s.analyses, &stored)
	return nil
}

func (s *memStore) analysesFor(userID string) []*models.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Analysis
	for _, rec := range s.analyses {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

// fakeModel is a canned ModelClient recording which models were invoked.
type fakeModel struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]string
	errs      map[string]error
}

func (f *fakeModel) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.mu.Unlock()
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	if resp, ok := f.responses[model]; ok {
		return resp, nil
	}
	return "", errors.New("no canned response for model " + model)
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeBilling is a canned BillingProvider.
type fakeBilling struct {
	customerID string
	sessionURL string
	portalURL  string
	session    *stripe.CheckoutSession

	createCustomerErr error
	sessionErr        error
	cancelErr         error

	customersCreated int
	cancelCalled     bool
}

func (f *fakeBilling) CreateCustomer(email, userID string) (string, error) {
	if f.createCustomerErr != nil {
		return "", f.createCustomerErr
	}
	f.customersCreated++
	return f.customerID, nil
}

func (f *fakeBilling) CreateCheckoutSession(customerID, priceID, successURL, cancelURL string) (string, error) {
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	return f.sessionURL, nil
}

func (f *fakeBilling) CreatePortalSession(customerID, returnURL string) (string, error) {
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	return f.portalURL, nil
}

func (f *fakeBilling) GetCheckoutSession(sessionID string) (*stripe.CheckoutSession, error) {
	if f.session == nil {
		return nil, errors.New("no such session")
	}
	return f.session, nil
}

func (f *fakeBilling) CancelActiveSubscription(customerID string) error {
	f.cancelCalled = true
	return f.cancelErr
}
