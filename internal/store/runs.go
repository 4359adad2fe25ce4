package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"oppradar/internal/model"
)

const runColumns = `id, scraper_name, started_at, completed_at, status,
	opportunities_found, opportunities_created, opportunities_updated, errors`

// CreateScraperRun opens the audit row for one adapter invocation.
func (s *Store) CreateScraperRun(ctx context.Context, scraperName string) (*model.ScraperRun, error) {
	run := &model.ScraperRun{
		ID:          uuid.NewString(),
		ScraperName: scraperName,
		StartedAt:   s.now(),
		Status:      model.RunRunning,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO scraper_runs (`+runColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.ScraperName, fmtTime(run.StartedAt), nil, string(run.Status),
		0, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinalizeScraperRun writes the terminal state. The error list is capped at
// model.MaxRunErrors; the row is immutable afterwards by convention.
func (s *Store) FinalizeScraperRun(ctx context.Context, run *model.ScraperRun) error {
	if len(run.Errors) > model.MaxRunErrors {
		run.Errors = run.Errors[:model.MaxRunErrors]
	}
	now := s.now()
	run.CompletedAt = &now
	_, err := s.db.ExecContext(ctx, `UPDATE scraper_runs SET
		completed_at = ?, status = ?,
		opportunities_found = ?, opportunities_created = ?, opportunities_updated = ?,
		errors = ?
		WHERE id = ?`,
		fmtTime(now), string(run.Status),
		run.OpportunitiesFound, run.OpportunitiesCreated, run.OpportunitiesUpdated,
		jsonColumn(run.Errors), run.ID)
	return err
}

// ListScraperRuns returns run history, newest first, optionally filtered by
// scraper name and status.
func (s *Store) ListScraperRuns(ctx context.Context, scraperName string, status model.RunStatus, limit int) ([]model.ScraperRun, error) {
	if limit <= 0 {
		limit = 20
	}
	where := []string{"1=1"}
	var args []any
	if scraperName != "" {
		where = append(where, "scraper_name = ?")
		args = append(args, scraperName)
	}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, string(status))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM scraper_runs WHERE `+strings.Join(where, " AND ")+`
		ORDER BY started_at DESC LIMIT ?`,
		append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScraperRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (*model.ScraperRun, error) {
	var (
		run         model.ScraperRun
		startedAt   string
		completedAt sql.NullString
		status      string
		errorsCol   sql.NullString
	)
	if err := row.Scan(&run.ID, &run.ScraperName, &startedAt, &completedAt, &status,
		&run.OpportunitiesFound, &run.OpportunitiesCreated, &run.OpportunitiesUpdated,
		&errorsCol); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	run.CompletedAt = parseTimePtr(completedAt)
	scanJSON(errorsCol, &run.Errors)

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	return &run, nil
}
