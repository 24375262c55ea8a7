package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	urfave "github.com/urfave/cli/v2"

	"github.com/invox/invox/cmd/invox/cli"
	"github.com/invox/invox/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cli.NewApp(cli.Env{}).RunContext(ctx, os.Args)
	if err == nil {
		return
	}
	var exit urfave.ExitCoder
	if errors.As(err, &exit) {
		if msg := exit.Error(); msg != "" {
			slog.Default().Error(msg)
		}
		os.Exit(exit.ExitCode())
	}
	slog.Default().Error("invox", slog.Any("error", err))
	os.Exit(1)
}
