package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "x2raindrop",
		Usage:    "Sync X bookmarks to Raindrop.io",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrMissingConfig), errors.Is(err, shared.ErrInvalidConfig):
			logger.Fatalf("configuration error: %v", err)
		case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
			logger.Fatalf("not authenticated: %v", err)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
