package main

import (
	"log/slog"
	"os"

	"github.com/chirpset/chirpset/cmd"
	"github.com/chirpset/chirpset/internal/conf"
	"github.com/chirpset/chirpset/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("error loading configuration", "error", err)
	}
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
