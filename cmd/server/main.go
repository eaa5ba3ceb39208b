package main

import (
	"log"
	"os"

	"github.com/arensoandre/expert-cof/app"
	"github.com/arensoandre/expert-cof/app/config"
	"github.com/arensoandre/expert-cof/auth"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store := app.MustInitDB(cfg)
	analyzer := app.NewAnalyzer(app.NewGeminiClient(cfg.Gemini), cfg.Gemini)
	billing := app.NewStripeBilling(cfg.Stripe.SecretKey)

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil && !auth.AuthDisabled() {
		log.Fatalf("failed to initialize auth verifier: %v", err)
	}

	a := app.New(cfg, store, analyzer, billing)
	router, err := app.NewRouter(a, verifier)
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := router.Run("0.0.0.0:" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
