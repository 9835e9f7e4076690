package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/demand"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/service"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const dbKey ctxKey = "db"

func initDB(c *cli.Context) error {
	url := c.String("db-url")
	if url == "" {
		return nil
	}

	raw, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := raw.PingContext(c.Context); err != nil {
		raw.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := postgres.Wrap(sqlx.NewDb(raw, "pgx"))
	if err := db.Migrate(c.Context); err != nil {
		db.Close()
		return err
	}

	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func runSolve(c *cli.Context) error {
	sc, err := config.LoadScenario(c.String("scenario"))
	if err != nil {
		return err
	}

	opts := service.Options{AllowFileSources: true}
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		opts.Runs = repository.NewRunRepository(db)
	}
	if c.Bool("upload") {
		cfg := config.Load()
		store, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return err
		}
		opts.Storage = store
		opts.ExportPrefix = cfg.Storage.Prefix
	}

	svc := service.NewSolverService(cache.NewNoopResultCache(), opts)
	result, err := svc.Solve(c.Context, sc)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "scenario\t%s\n", result.ScenarioName)
	fmt.Fprintf(w, "mode\t%s\n", result.Mode)
	fmt.Fprintf(w, "value\t%s\n", strconv.FormatFloat(result.Value, 'f', -1, 64))
	fmt.Fprintf(w, "states\t%d\n", result.Stats.States)
	fmt.Fprintf(w, "decisions\t%d\n", result.Stats.Decisions)
	fmt.Fprintf(w, "duration\t%dms\n", result.DurationMs)
	fmt.Fprintf(w, "run\t%s\n", result.RunID)
	if result.ExportKey != "" {
		fmt.Fprintf(w, "export\t%s\n", result.ExportKey)
	}
	return w.Flush()
}

func runPlan(c *cli.Context) error {
	params, err := loadParams(c.String("scenario"))
	if err != nil {
		return err
	}
	b, err := solver.Plan(params)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "periods\t%d\n", b.Periods)
	fmt.Fprintf(w, "steps\t%d\n", b.Steps)
	fmt.Fprintf(w, "inventory\t[%d, %d]\n", b.MinInventory, b.MaxInventory)
	fmt.Fprintf(w, "backlog\t[0, %d]\n", b.MaxBacklog)
	fmt.Fprintf(w, "cells\t%d\n", b.Size())
	return w.Flush()
}

func runPolicy(c *cli.Context) error {
	params, err := loadParams(c.String("scenario"))
	if err != nil {
		return err
	}
	dp, err := solver.New(params)
	if err != nil {
		return err
	}
	value, err := dp.Solve()
	if err != nil {
		return err
	}
	log.Info().Float64("value", value).Int("states", dp.Stats().States).Msg("scenario solved")

	policy, err := storage.PolicyCSV(dp.Policy())
	if err != nil {
		return err
	}
	if err := writeOutput(c.App.Writer, c.String("out"), policy); err != nil {
		return err
	}

	if path := c.String("values-out"); path != "" {
		values, err := storage.ValueTableCSV(dp.ValueTable())
		if err != nil {
			return err
		}
		return os.WriteFile(path, values, 0o644)
	}
	return nil
}

func runJoint(c *cli.Context) error {
	premium, err := demand.LoadDistribution(c.String("premium"))
	if err != nil {
		return err
	}
	base, err := demand.LoadDistribution(c.String("base"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "premium\tbase\tprob")
	for _, o := range solver.Joint(premium, base) {
		fmt.Fprintf(w, "%d\t%d\t%s\n", o.Premium, o.Base, strconv.FormatFloat(o.Prob, 'g', -1, 64))
	}
	return w.Flush()
}

func loadParams(path string) (solver.Params, error) {
	sc, err := config.LoadScenario(path)
	if err != nil {
		return solver.Params{}, err
	}
	return config.BuildParams(sc, true)
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runCacheFlush(c *cli.Context) error {
	cfg := config.Load()
	if !cfg.Cache.Enabled {
		return fmt.Errorf("result cache is disabled, set CACHE_ENABLED=true")
	}
	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		return err
	}

	svc := service.NewSolverService(resultCache, service.Options{})
	hash := c.String("hash")
	if err := svc.FlushCache(c.Context, hash); err != nil {
		return err
	}
	if hash == "" {
		hash = "all"
	}
	_, err = fmt.Fprintf(c.App.Writer, "flushed %s\n", hash)
	return err
}
