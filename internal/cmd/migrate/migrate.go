// Package migrate implements the migrate sub-command. Schema migrations
// run automatically the first time a tenant's database file is opened
// (internal/plugin/store/sqlite.Open), so this command's only job is to
// force that open eagerly against a chosen path, surfacing migration
// failures before serve ever accepts traffic.
package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	storereg "github.com/engram-memory/engram/internal/registry/store"

	_ "github.com/engram-memory/engram/internal/plugin/store/sqlite"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations to a tenant database file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-path",
				Sources:  cli.EnvVars("ENGRAM_MIGRATE_DB_PATH"),
				Usage:    "Path to the sqlite database file to migrate",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "embedding-dimension",
				Sources: cli.EnvVars("ENGRAM_EMBED_DIMENSION"),
				Value:   384,
				Usage:   "Vector width for the embedding index table",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dbPath := cmd.String("db-path")
			dimension := int(cmd.Int("embedding-dimension"))

			loader, err := storereg.Select("sqlite")
			if err != nil {
				return err
			}

			log.Info("Running migrations...", "path", dbPath)
			st, err := loader(ctx, dbPath, dimension)
			if err != nil {
				return err
			}
			defer st.Close()
			log.Info("All migrations completed successfully", "path", dbPath)
			return nil
		},
	}
}
