// Package catalog records run provenance in Postgres when a DATABASE_URL
// is configured. The pipeline works identically without it.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seaward/echoflow/internal/models"
)

const insertRunSQL = `INSERT INTO echoflow.runs (id, survey, started_at, finished_at, total_files, succeeded, failed)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING`

const upsertOutcomeSQL = `INSERT INTO echoflow.file_outcomes (run_id, stem, source_key, status, error, outputs, elapsed_ms, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (run_id, stem) DO UPDATE
SET status = EXCLUDED.status,
    error = EXCLUDED.error,
    outputs = EXCLUDED.outputs,
    elapsed_ms = EXCLUDED.elapsed_ms,
    recorded_at = NOW()`

// Record writes the run row plus one outcome row per processed file.
func Record(ctx context.Context, pool *pgxpool.Pool, survey string, report *models.RunReport) error {
	batch := &pgx.Batch{}
	batch.Queue(insertRunSQL,
		report.RunID,
		survey,
		report.StartedAt,
		time.Now().UTC(),
		len(report.Outcomes),
		report.Succeeded(),
		report.Failed(),
	)

	for _, o := range report.Outcomes {
		status, errText := outcomeStatus(o)
		batch.Queue(upsertOutcomeSQL,
			report.RunID,
			o.Stem,
			o.Key,
			status,
			errText,
			strings.Join(o.Outputs, ","),
			o.Elapsed.Milliseconds(),
		)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for i := 0; i < len(report.Outcomes)+1; i++ {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// CandidateRows renders the outcome rows Record would upsert, one line per
// processed file, for dry-run logging.
func CandidateRows(survey string, report *models.RunReport) []string {
	rows := make([]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		status, errText := outcomeStatus(o)
		line := fmt.Sprintf("run=%s survey=%s stem=%s key=%s status=%s outputs=%d elapsed=%dms",
			report.RunID, survey, o.Stem, o.Key, status, len(o.Outputs), o.Elapsed.Milliseconds())
		if errText != nil {
			line += " error=" + *errText
		}
		rows = append(rows, line)
	}
	return rows
}

func outcomeStatus(o models.FileOutcome) (string, *string) {
	if o.OK() {
		return "ok", nil
	}
	msg := o.Err.Error()
	return "failed", &msg
}
