// Package app wires configuration, the ledger, the translation backend and
// the job orchestrator into one application instance shared by the CLI
// commands and the HTTP server.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"transbooks/internal/config"
	"transbooks/internal/costtracker"
	"transbooks/internal/jobs"
	"transbooks/internal/ledger"
	"transbooks/internal/translate"
)

type App struct {
	Config     *config.Config
	Ledger     *ledger.Store
	Translator translate.Translator
	Jobs       *jobs.Manager
	Usage      *costtracker.Tracker
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	led, err := ledger.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	usage := costtracker.New()
	tr, err := translate.NewOpenAITranslator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, usage)
	if err != nil {
		led.Close()
		return nil, err
	}

	manager, err := jobs.NewManager(cfg, led, tr)
	if err != nil {
		led.Close()
		return nil, err
	}

	log.Debugf("App initialized (data dir %s)", cfg.Storage.DataDir)
	return &App{
		Config:     cfg,
		Ledger:     led,
		Translator: tr,
		Jobs:       manager,
		Usage:      usage,
	}, nil
}

// Close releases app-held resources.
func (a *App) Close() error {
	return a.Ledger.Close()
}
