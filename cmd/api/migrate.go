package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"graphreview/api/internal/config"
	"graphreview/api/internal/store"
)

type migrateCmd struct {
	cfg    *config.Config
	status bool
}

func newMigrateCmd(cfg *config.Config) *migrateCmd {
	return &migrateCmd{cfg: cfg}
}

func (cmd *migrateCmd) command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "status",
				Usage:       "list migrations and whether they are applied",
				Destination: &cmd.status,
			},
		},
		Action: cmd.run,
	}
}

func (cmd *migrateCmd) run(ctx context.Context, c *cli.Command) error {
	db, err := store.Open(ctx, cmd.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	out := c.Root().Writer
	if cmd.status {
		statuses, err := store.Status(ctx, db, cmd.cfg.MigrationsDir)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			mark := "pending"
			if s.Applied {
				mark = "applied"
			}
			_, _ = fmt.Fprintf(out, "%-8s %s\n", mark, s.Version)
		}
		return nil
	}

	applied, err := store.ApplyMigrations(ctx, db, cmd.cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		_, _ = fmt.Fprintln(out, "no pending migrations")
		return nil
	}
	for _, v := range applied {
		_, _ = fmt.Fprintln(out, "applied", v)
	}
	return nil
}
