package app

import (
	"errors"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// BillingProvider is the slice of the payment provider the handlers need.
// The Stripe-backed implementation is swapped for a fake in tests.
type BillingProvider interface {
	CreateCustomer(email, userID string) (string, error)
	CreateCheckoutSession(customerID, priceID, successURL, cancelURL string) (string, error)
	CreatePortalSession(customerID, returnURL string) (string, error)
	GetCheckoutSession(sessionID string) (*stripe.CheckoutSession, error)
	// CancelActiveSubscription cancels the customer's first active
	// subscription, if any.
	CancelActiveSubscription(customerID string) error
}

type stripeBilling struct {
	api *client.API
}

// NewStripeBilling wires a Stripe client with the secret key.
func NewStripeBilling(secretKey string) BillingProvider {
	return &stripeBilling{api: client.New(secretKey, nil)}
}

func (b *stripeBilling) CreateCustomer(email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"user_id": userID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cust, err := b.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (b *stripeBilling) CreateCheckoutSession(customerID, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	sess, err := b.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (b *stripeBilling) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := b.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (b *stripeBilling) GetCheckoutSession(sessionID string) (*stripe.CheckoutSession, error) {
	return b.api.CheckoutSessions.Get(sessionID, nil)
}

func (b *stripeBilling) CancelActiveSubscription(customerID string) error {
	if customerID == "" {
		return errors.New("missing stripe customer id")
	}
	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	listParams.Limit = stripe.Int64(1)

	iter := b.api.Subscriptions.List(listParams)
	for iter.Next() {
		sub := iter.Subscription()
		if _, err := b.api.Subscriptions.Cancel(sub.ID, nil); err != nil {
			return err
		}
		return nil
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return errors.New("no active subscription found")
}
