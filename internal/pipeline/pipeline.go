// Package pipeline drives the per-file convert/calibrate/bin loop and
// collects the run report.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/seaward/echoflow/internal/config"
	"github.com/seaward/echoflow/internal/datefilter"
	"github.com/seaward/echoflow/internal/echo"
	"github.com/seaward/echoflow/internal/layout"
	"github.com/seaward/echoflow/internal/models"
	"github.com/seaward/echoflow/internal/ncio"
)

// Source is the remote store the pipeline reads raw files from.
type Source interface {
	List(ctx context.Context) ([]models.RemoteFile, error)
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// Run lists the bucket, filters by survey dates, and processes every
// matching file. Per-file errors are captured in the report and do not
// stop the loop; listing errors and stem collisions abort the run.
func Run(ctx context.Context, cfg config.Config, src Source, lay *layout.Layout) (*models.RunReport, error) {
	files, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := datefilter.Filter(files, cfg.StartDate, cfg.EndDate)
	log.Printf("found %d raw files in range %s..%s (of %d listed)",
		len(matched),
		cfg.StartDate.Format("2006-01-02"),
		cfg.EndDate.Format("2006-01-02"),
		len(files))

	if err := checkStems(matched); err != nil {
		return nil, err
	}

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	for _, f := range matched {
		outcome := processOne(ctx, cfg, src, lay, f)
		if outcome.OK() {
			log.Printf("created %s", lay.ProductPath(outcome.Stem))
		} else {
			log.Printf("failed %s: %v", f.Key, outcome.Err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

// checkStems rejects listings where two distinct keys would write to the
// same output files.
func checkStems(files []models.RemoteFile) error {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		stem := f.Stem()
		if prev, ok := seen[stem]; ok {
			return fmt.Errorf("stem collision: %s and %s both map to %s", prev, f.Key, stem)
		}
		seen[stem] = f.Key
	}
	return nil
}

// processOne runs fetch -> convert -> calibrate -> bin -> persist for a
// single remote file. Partial outputs of a failed file are left in place.
func processOne(ctx context.Context, cfg config.Config, src Source, lay *layout.Layout, f models.RemoteFile) models.FileOutcome {
	started := time.Now()
	outcome := models.FileOutcome{Key: f.Key, Stem: f.Stem()}

	fail := func(err error) models.FileOutcome {
		outcome.Err = err
		outcome.Elapsed = time.Since(started)
		return outcome
	}

	body, err := src.Fetch(ctx, f.Key)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	rec, err := echo.ReadRaw(body)
	if err != nil {
		return fail(fmt.Errorf("convert: %w", err))
	}

	sv, err := echo.Calibrate(rec)
	if err != nil {
		return fail(fmt.Errorf("calibrate: %w", err))
	}

	mvbs, err := echo.BinMVBS(sv, cfg.RangeBinMeters, cfg.PingBin)
	if err != nil {
		return fail(fmt.Errorf("bin: %w", err))
	}

	productPath := lay.ProductPath(outcome.Stem)
	if err := ncio.WriteGrid(productPath, mvbs); err != nil {
		return fail(err)
	}
	outcome.Outputs = append(outcome.Outputs, productPath)

	lon, lat := rec.Platform()
	lonPath := lay.LonPath(outcome.Stem)
	if err := ncio.WriteTrack(lonPath, lon); err != nil {
		return fail(err)
	}
	outcome.Outputs = append(outcome.Outputs, lonPath)

	latPath := lay.LatPath(outcome.Stem)
	if err := ncio.WriteTrack(latPath, lat); err != nil {
		return fail(err)
	}
	outcome.Outputs = append(outcome.Outputs, latPath)

	outcome.Elapsed = time.Since(started)
	return outcome
}
