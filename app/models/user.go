// Package models defines user plan and billing fields.
package models

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

type User struct {
	ID               string `db:"id"`
	Email            string `db:"email"`
	Plan             Plan   `db:"plan"`
	StripeCustomerID string `db:"stripe_customer_id"`
}
