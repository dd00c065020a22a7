package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/authhelper/internal/keyring"
)

func (a *App) initModules() {
	if a.config.IsSet("modules.keyring.enabled") && !a.config.GetBool("modules.keyring.enabled") {
		slog.Warn("module keyring disabled")
		return
	}

	if err := keyring.New(keyring.Dependency{
		Store:       a.store,
		Goroutine:   a.goroutine,
		Router:      a.router,
		Idempotency: a.idemp,
		Messaging:   a.messaging,
		Config:      a.config,
		Instrument:  a.ins,
		UUID:        a.uuid,
		Clock:       a.clock,
		Random:      a.random,
		Validator:   a.validator,
	}); err != nil {
		slog.Error("failed to init module keyring", "error", err)
		os.Exit(1)
	}
}
