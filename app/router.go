package app

import (
	"time"

	"github.com/arensoandre/expert-cof/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the shared HTTP router.
func NewRouter(a *App, verifier *auth.Verifier) (*gin.Engine, error) {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(MetricsMiddleware())

	router.GET("/", a.Root)
	router.GET("/health", a.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/stripe/webhook", a.StripeWebhook)
	router.POST("/api/create-checkout-session", a.CreateCheckoutSession)
	router.POST("/api/create-portal-session", a.CreatePortalSession)
	router.POST("/api/verify-checkout-session", a.VerifyCheckoutSession)
	router.POST("/api/cancel-subscription", a.CancelSubscription)

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: func(c *gin.Context, claims *auth.Claims) error {
			return a.store.UpsertUser(c.Request.Context(), claims.Subject, claims.Email)
		},
	}))
	protected.POST("/api/cof/upload", a.UploadCOF)

	return router, nil
}
