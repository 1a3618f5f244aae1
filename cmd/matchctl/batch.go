package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/batch"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/postgres"
)

func batchCommand(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	cases, err := batch.ReadCases(c.String("cases"))
	if err != nil {
		return err
	}

	workers := c.Int("workers")
	if workers == 0 {
		workers = cfg.Batch.Workers
	}
	var regOpts []registry.Option
	if seed := c.Int64("seed"); seed != 0 {
		regOpts = append(regOpts, registry.WithSeed(seed))
	}
	runner, err := batch.NewRunner(registry.New(regOpts...), workers,
		batch.WithStopwords(c.String("stopwords")),
		batch.WithAlternating(c.Bool("alternating")),
	)
	if err != nil {
		return err
	}
	defer runner.Release()

	report, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}

	if c.Bool("persist") || cfg.Batch.Persist {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		store := batch.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.SaveReport(ctx, report); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(os.Stdout, report)
	}
	if report.Failed+report.Errors > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func printReport(out io.Writer, report batch.Report) {
	for _, o := range report.Outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(out, "ERROR %s %q: %s\n", o.Case.File, o.Case.Query, o.Error)
		case !o.Passed:
			fmt.Fprintf(out, "FAIL  %s %q\n      want %q\n      got  %q\n", o.Case.File, o.Case.Query, o.Case.Answer, o.Got)
		}
	}
	fmt.Fprintf(out, "%d cases: %d passed, %d failed, %d errors (%s)\n",
		report.Total, report.Passed, report.Failed, report.Errors, report.Duration.Round(time.Millisecond))
}
