package cli

// This file contains helpers to build Neon clients and sessions from flags.

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/branchbench/branchbench/dbconn"
	"github.com/branchbench/branchbench/model"
	"github.com/branchbench/branchbench/neon"
	"github.com/branchbench/branchbench/results"
	"github.com/branchbench/branchbench/session"
)

func (a *App) neonClient(ctx *cli.Context) *neon.Client {
	return neon.NewClient(a.logger, neon.Config{
		BaseURL:  ctx.String("api-url"),
		APIKey:   ctx.String("api-key"),
		RoleName: ctx.String("role"),
	})
}

func managerOptions(ctx *cli.Context) neon.Options {
	return neon.Options{
		ProjectID:  ctx.String("project-id"),
		BranchID:   ctx.String("branch-id"),
		BranchName: ctx.String("branch-name"),
		Database:   ctx.String("database"),
		Autocommit: ctx.Bool("autocommit"),
	}
}

func target(ctx *cli.Context) *model.Target {
	opts := managerOptions(ctx)
	return &model.Target{
		Backend:    "neon",
		ProjectID:  opts.ProjectID,
		BranchName: opts.BranchName,
		BranchID:   opts.BranchID,
		Database:   opts.Database,
		Driver:     ctx.String("driver"),
		Autocommit: opts.Autocommit,
	}
}

// openSession connects to the opening branch and wraps it in a session
// recording into recorder.
func (a *App) openSession(ctx *cli.Context, recorder *results.Recorder) (*session.Session, error) {
	driverName := ctx.String("driver")
	if driverName != dbconn.DriverPgx && driverName != dbconn.DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}

	manager, err := neon.Open(ctx.Context, a.logger, a.neonClient(ctx), dbconn.NewSQLDriver(driverName), managerOptions(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open neon session: %w", err)
	}
	return session.New(a.logger, manager, recorder), nil
}
