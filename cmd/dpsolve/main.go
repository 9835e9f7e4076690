package main

import (
	"os"

	"github.com/andresuchdata/autopo-dp/backend-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load(".env")

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("dpsolve failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dpsolve",
		Usage: "Evaluate two-class inventory scenarios from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "solve",
				Usage: "Solve a scenario file and print the expected total cost",
				Flags: []cli.Flag{
					scenarioFlag(),
					&cli.StringFlag{
						Name:    "db-url",
						Usage:   "Persist the run to this database",
						EnvVars: []string{"DATABASE_URL"},
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Upload policy and value exports to object storage (STORAGE_* env)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full result as JSON",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runSolve,
			},
			{
				Name:  "plan",
				Usage: "Print state-space bounds for a scenario without solving it",
				Flags: []cli.Flag{
					scenarioFlag(),
				},
				Action: runPlan,
			},
			{
				Name:  "policy",
				Usage: "Solve a scenario and write the policy table as CSV",
				Flags: []cli.Flag{
					scenarioFlag(),
					&cli.StringFlag{
						Name:  "out",
						Usage: "Policy CSV path (stdout when empty)",
					},
					&cli.StringFlag{
						Name:  "values-out",
						Usage: "Optional value table CSV path",
					},
				},
				Action: runPolicy,
			},
			{
				Name:  "joint",
				Usage: "Print the joint demand distribution built from two marginal files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "premium",
						Usage:    "Premium demand distribution (.csv or .xlsx)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "base",
						Usage:    "Base demand distribution (.csv or .xlsx)",
						Required: true,
					},
				},
				Action: runJoint,
			},
			{
				Name:  "cache",
				Usage: "Manage cached solve results (CACHE_* / REDIS_* env)",
				Subcommands: []*cli.Command{
					{
						Name:  "flush",
						Usage: "Drop every cached result, or only --hash",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "hash",
								Usage: "Scenario hash to invalidate",
							},
						},
						Action: runCacheFlush,
					},
				},
			},
		},
	}
}

func scenarioFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "scenario",
		Aliases:  []string{"s"},
		Usage:    "Scenario file (yaml, json or toml)",
		Required: true,
	}
}
