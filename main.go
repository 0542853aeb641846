package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seaward/echoflow/internal/bucket"
	"github.com/seaward/echoflow/internal/catalog"
	"github.com/seaward/echoflow/internal/config"
	"github.com/seaward/echoflow/internal/layout"
	"github.com/seaward/echoflow/internal/merge"
	"github.com/seaward/echoflow/internal/models"
	"github.com/seaward/echoflow/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("echoflow failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lay, err := layout.Build(cfg)
	if err != nil {
		return err
	}
	log.Printf("output layout at %s", lay.Root)

	src, err := bucket.New(cfg.Endpoint, cfg.Bucket, cfg.Prefix, cfg.Secure)
	if err != nil {
		return err
	}

	report, err := pipeline.Run(ctx, cfg, src, lay)
	if err != nil {
		return err
	}
	log.Printf("run %s: %d files processed, %d failed",
		report.RunID, report.Succeeded(), report.Failed())

	if err := recordCatalog(ctx, cfg, report); err != nil {
		return err
	}

	combined, path, err := merge.Combine(lay, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Printf("wrote %s (%d pings x %d range bins)",
		path, len(combined.Times), len(combined.Ranges))
	return nil
}

func recordCatalog(ctx context.Context, cfg config.Config, report *models.RunReport) error {
	if cfg.DatabaseURL == "" {
		log.Printf("catalog disabled (no DATABASE_URL)")
		return nil
	}
	if cfg.DryRun {
		log.Printf("dry-run: catalog rows for run %s:", report.RunID)
		for _, row := range catalog.CandidateRows(cfg.SurveyLabel, report) {
			log.Printf("dry-run: %s", row)
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalog.Record(ctx, pool, cfg.SurveyLabel, report); err != nil {
		return err
	}
	log.Printf("recorded run %s in catalog", report.RunID)
	return nil
}
