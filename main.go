package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/briangreenhill/moto/internal/app"
	"github.com/briangreenhill/moto/internal/config"
)

func main() {
	w := os.Stdout
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{}))

	cfg, err := config.Load(os.Getenv("MOTO_CONFIG"))
	if err != nil {
		logger.Error("Error loading config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Error starting moto", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Error("Error closing moto", slog.Any("error", err))
		}
	}()

	if err := run(ctx, w, os.Args[1:], logger, services); err != nil {
		logger.Error("Error running moto", slog.Any("error", err))
		return
	}
}

func run(ctx context.Context, w io.Writer, args []string, logger *slog.Logger, services *app.Services) error {
	cli := app.NewCLI(w, services, logger)

	if err := cli.Run(ctx, args); err != nil {
		return err
	}

	return nil
}
