package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/branchbench/branchbench/dbconn"
	"github.com/branchbench/branchbench/neon"
)

const AppName = "branchbench"

const defaultResultsDir = ".branchbench"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Benchmark branch operations of branchable Postgres databases",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "results-dir",
					Usage:   "Directory runs are recorded in",
					Value:   defaultResultsDir,
					EnvVars: []string{"BRANCHBENCH_RESULTS_DIR"},
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Run a workload against a Neon branch and record the results",
		Action: app.run,
		Flags: append(
			append(apiFlags(), connectionFlags()...),
			&cli.StringFlag{
				Name:     "workload",
				Aliases:  []string{"w"},
				Usage:    "Workload definition file (YAML)",
				Required: true,
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "Random seed recorded with the results, overrides the workload seed",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Also write a Prometheus textfile with latency metrics",
			},
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "workload",
				Usage: "Filter by workload name",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View the records of a previous run",
		ArgsUsage:       "[ID|INDEX] [-- OP_TYPE...]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View the records of a previous run.

Arguments:
  0           View last run (default)
  -1          View 2nd last run
  -2          View 3rd last run
  <hex-id>    View run matching the hex ID prefix

Any further arguments are operation types to filter by.

Examples:
  branchbench view                  # View last run
  branchbench view -1               # View 2nd last run
  branchbench view abc123           # View run with ID starting with abc123
  branchbench view 0 -- branch_create branch_connect`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "branches",
		Usage: "Manage branches of a Neon project",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List branches of the project",
				Action: app.branchesList,
				Flags:  append(apiFlags(), projectFlag()),
			},
			{
				Name:      "delete",
				Usage:     "Delete branches by id",
				ArgsUsage: "BRANCH_ID...",
				Action:    app.branchesDelete,
				Flags:     append(apiFlags(), projectFlag()),
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "project",
		Usage: "Manage Neon projects",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a project",
				ArgsUsage: "NAME",
				Action:    app.projectCreate,
				Flags: append(apiFlags(), &cli.IntFlag{
					Name:  "pg-version",
					Usage: "Postgres major version",
					Value: 17,
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a project and all of its branches",
				ArgsUsage: "PROJECT_ID",
				Action:    app.projectDelete,
				Flags:     apiFlags(),
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "psql",
		Usage:  "Run an SQL file with psql against a branch, e.g. to load a dataset",
		Action: app.psql,
		Flags: append(
			append(apiFlags(), connectionFlags()...),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "SQL file to run",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "branch",
				Usage: "Name of the branch to run against (default: the opening branch)",
			},
		),
	})
	return app
}

func apiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "api-key",
			Usage:    "Neon API key",
			EnvVars:  []string{"NEON_API_KEY", "NEON_API_KEY_ORG"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "Base URL of the Neon API",
			Value:   neon.DefaultBaseURL,
			EnvVars: []string{"NEON_API_URL"},
		},
		&cli.StringFlag{
			Name:    "role",
			Usage:   "Database role used in connection URIs",
			Value:   neon.DefaultRoleName,
			EnvVars: []string{"NEON_ROLE"},
		},
	}
}

func projectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "project-id",
		Usage:    "Neon project id",
		EnvVars:  []string{"NEON_PROJECT_ID"},
		Required: true,
	}
}

func connectionFlags() []cli.Flag {
	return []cli.Flag{
		projectFlag(),
		&cli.StringFlag{
			Name:     "branch-id",
			Usage:    "Id of the branch to open the session on",
			EnvVars:  []string{"NEON_BRANCH_ID"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "branch-name",
			Usage:   "Name of the opening branch",
			Value:   neon.DefaultBranchName,
			EnvVars: []string{"NEON_BRANCH_NAME"},
		},
		&cli.StringFlag{
			Name:    "database",
			Usage:   "Database name",
			Value:   "neondb",
			EnvVars: []string{"NEON_DATABASE"},
		},
		&cli.StringFlag{
			Name:  "driver",
			Usage: fmt.Sprintf("database/sql driver, %s or %s", dbconn.DriverPgx, dbconn.DriverPostgres),
			Value: dbconn.DriverPgx,
		},
		&cli.BoolFlag{
			Name:  "autocommit",
			Usage: "Run every statement in its own transaction",
		},
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
