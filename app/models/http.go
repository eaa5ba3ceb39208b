package models

// Request bodies for the billing endpoints. user_id comes from the frontend
// session rather than the bearer token, matching the public checkout flow.

type CheckoutRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	PriceID string `json:"price_id" binding:"required"`
}

type PortalRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type VerifySessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
}

type CancelSubscriptionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
