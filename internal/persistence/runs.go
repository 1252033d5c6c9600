package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/lyricflow/internal/scheduler"
)

// RunRecord is the exported summary of a finished run.
type RunRecord struct {
	ID         string
	FinishedAt time.Time
	Rounds     int
	Completed  int
	Failed     int
	Skipped    int
	Facts      []string // Final fact set
	Error      string   // Empty when the run succeeded
}

// RunRecordFromReport summarizes a scheduler report and the error Run returned.
func RunRecordFromReport(report *scheduler.Report, runErr error) RunRecord {
	rec := RunRecord{
		ID:         report.RunID,
		FinishedAt: time.Now().UTC(),
		Rounds:     len(report.Rounds),
		Completed:  report.Count(scheduler.TaskCompleted),
		Failed:     report.Count(scheduler.TaskFailed),
		Skipped:    report.Count(scheduler.TaskSkipped),
	}
	for _, f := range report.Facts {
		rec.Facts = append(rec.Facts, string(f))
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// SaveRun stores a run summary. Saving the same run ID twice replaces it.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, finished_at, rounds, completed, failed, skipped, facts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			rounds = excluded.rounds,
			completed = excluded.completed,
			failed = excluded.failed,
			skipped = excluded.skipped,
			facts = excluded.facts,
			error = excluded.error
	`, rec.ID, rec.FinishedAt, rec.Rounds, rec.Completed, rec.Failed, rec.Skipped, strings.Join(rec.Facts, ","), rec.Error)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns stored runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, finished_at, rounds, completed, failed, skipped, facts, error
		FROM runs
		ORDER BY finished_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var facts string
		if err := rows.Scan(&rec.ID, &rec.FinishedAt, &rec.Rounds, &rec.Completed, &rec.Failed, &rec.Skipped, &facts, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if facts != "" {
			rec.Facts = strings.Split(facts, ",")
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
