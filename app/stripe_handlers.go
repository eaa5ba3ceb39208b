package app

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/arensoandre/expert-cof/app/models"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CreateCheckoutSession starts a subscription Checkout Session for the user
// named in the request body, creating and storing a Stripe customer first if
// the user has none.
func (a *App) CreateCheckoutSession(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	customerID, err := a.ensureStripeCustomer(c.Request.Context(), req.UserID)
	if err != nil {
		log.Printf("stripe checkout error for user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	frontendURL := strings.TrimRight(a.cfg.Stripe.FrontendURL, "/")
	sessURL, err := a.billing.CreateCheckoutSession(
		customerID,
		req.PriceID,
		frontendURL+"/dashboard?session_id={CHECKOUT_SESSION_ID}",
		frontendURL+"/profile",
	)
	if err != nil {
		log.Printf("stripe checkout session failed for user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sessURL})
}

// CreatePortalSession opens the Stripe customer portal for the user named in
// the request body.
func (a *App) CreatePortalSession(c *gin.Context) {
	var req models.PortalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	customerID, err := a.ensureStripeCustomer(c.Request.Context(), req.UserID)
	if err != nil {
		log.Printf("stripe portal error for user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	frontendURL := strings.TrimRight(a.cfg.Stripe.FrontendURL, "/")
	sessURL, err := a.billing.CreatePortalSession(customerID, frontendURL+"/profile")
	if err != nil {
		log.Printf("stripe portal session failed for user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sessURL})
}

// VerifyCheckoutSession confirms a Checkout Session after redirect. Only a
// paid session upgrades the plan; anything else reports pending with no
// mutation.
func (a *App) VerifyCheckoutSession(c *gin.Context) {
	var req models.VerifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess, err := a.billing.GetCheckoutSession(req.SessionID)
	if err != nil {
		log.Printf("verification error for session=%s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		c.JSON(http.StatusOK, gin.H{"status": "pending", "plan": models.PlanFree})
		return
	}

	if err := a.store.SetUserPlan(c.Request.Context(), req.UserID, models.PlanPremium); err != nil {
		log.Printf("plan upgrade failed for user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "plan": models.PlanPremium})
}

// CancelSubscription cancels the Stripe subscription best-effort and always
// downgrades the local plan to free.
func (a *App) CancelSubscription(c *gin.Context) {
	var req models.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	log.Printf("cancelling subscription for user=%s", req.UserID)

	user, err := a.store.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		log.Printf("cancel: user lookup failed for user=%s: %v", req.UserID, err)
	} else if user.StripeCustomerID != "" {
		if err := a.billing.CancelActiveSubscription(user.StripeCustomerID); err != nil {
			// Ignored so the local downgrade still happens.
			log.Printf("stripe cancellation failed for user=%s: %v", req.UserID, err)
		}
	}

	if err := a.store.SetUserPlan(c.Request.Context(), req.UserID, models.PlanFree); err != nil {
		log.Printf("local downgrade failed for user=%s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Subscription cancelled and plan downgraded."})
}

// StripeWebhook handles subscription lifecycle events and updates user plans.
func (a *App) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	endpointSecret := a.cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Printf("stripe session unmarshal failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
			return
		}
		if err := a.updatePlanFromEvent(c.Request.Context(), customerID(sess.Customer), models.PlanPremium); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Printf("stripe subscription unmarshal failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription payload"})
			return
		}
		if err := a.updatePlanFromEvent(c.Request.Context(), customerID(sub.Customer), models.PlanFree); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	default:
		// Intentionally ignore unhandled events.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) updatePlanFromEvent(ctx context.Context, stripeCustomerID string, plan models.Plan) error {
	if stripeCustomerID == "" {
		log.Printf("stripe event missing customer id")
		return errMissingCustomer
	}
	if err := a.store.SetUserPlanByStripeCustomer(ctx, stripeCustomerID, plan); err != nil {
		log.Printf("stripe plan update failed customer=%s plan=%s err=%v", stripeCustomerID, plan, err)
		return err
	}
	return nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// ensureStripeCustomer finds or creates a Stripe Customer for the given user,
// storing the id on the users row the first time.
func (a *App) ensureStripeCustomer(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errMissingUser
	}

	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	custID, err := a.billing.CreateCustomer(user.Email, userID)
	if err != nil {
		return "", err
	}
	if err := a.store.SetStripeCustomerID(ctx, userID, custID); err != nil {
		return "", err
	}
	return custID, nil
}
