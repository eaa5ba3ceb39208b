// Package app wires the COF upload pipeline, billing endpoints and
// persistence behind the shared HTTP router.
package app

import (
	"log"
	"os"

	"github.com/arensoandre/expert-cof/app/config"
)

// App holds the explicitly constructed collaborators every handler needs.
// Nothing in here is an ambient singleton; tests substitute fakes.
type App struct {
	cfg      *config.Config
	store    Store
	analyzer *Analyzer
	billing  BillingProvider
}

func New(cfg *config.Config, store Store, analyzer *Analyzer, billing BillingProvider) *App {
	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Printf("failed to create upload dir %s: %v", cfg.Upload.Dir, err)
	}
	return &App{
		cfg:      cfg,
		store:    store,
		analyzer: analyzer,
		billing:  billing,
	}
}
