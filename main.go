package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/engram-memory/engram/internal/cmd/mcp"
	"github.com/engram-memory/engram/internal/cmd/migrate"
	"github.com/engram-memory/engram/internal/cmd/serve"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "engram",
		Usage: "Persistent memory service for AI agents",
		Commands: []*cli.Command{
			serve.Command(),
			migrate.Command(),
			mcp.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
