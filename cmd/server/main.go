package main

import (
	"log/slog"
	"os"

	"github.com/wirechat/wirechat/internal/app"
	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/logging"
	"github.com/wirechat/wirechat/internal/server"
)

func main() {
	logging.New()
	cfg := config.New()

	deps, err := app.New(cfg)
	if err != nil {
		slog.Error("Failed to wire application", "error", err)
		os.Exit(1)
	}

	s := server.New(deps)
	s.RegisterRoutes()
	s.Start(cfg.Addr)
}
