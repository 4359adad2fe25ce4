package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"oppradar/internal/model"
)

const matchColumns = `id, profile_id, opportunity_id, score, breakdown, eligible,
	reasons, suggestions, match_reasons, status, created_at, updated_at`

// UpsertMatch inserts or rescores a match keyed on
// (profile_id, opportunity_id). Rescoring overwrites score, breakdown,
// eligibility, and the explanation lists but never the user-set status or
// created_at. Lower recomputed scores still overwrite; matches are never
// deleted here.
func (s *Store) UpsertMatch(ctx context.Context, m *model.Match) error {
	now := s.now()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = model.MatchPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(profile_id, opportunity_id) DO UPDATE SET
			score = excluded.score,
			breakdown = excluded.breakdown,
			eligible = excluded.eligible,
			reasons = excluded.reasons,
			suggestions = excluded.suggestions,
			match_reasons = excluded.match_reasons,
			updated_at = excluded.updated_at`,
		m.ID, m.ProfileID, m.OpportunityID,
		m.Score, jsonColumn(m.Breakdown), m.Eligible,
		jsonColumn(m.Reasons), jsonColumn(m.Suggestions), jsonColumn(m.MatchReasons),
		string(m.Status), fmtTime(m.CreatedAt), fmtTime(m.UpdatedAt))
	return err
}

// TopMatches returns a profile's matches ordered by score descending,
// dismissed ones excluded.
func (s *Store) TopMatches(ctx context.Context, profileID string, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		WHERE profile_id = ? AND status != ?
		ORDER BY score DESC, updated_at DESC LIMIT ?`,
		profileID, string(model.MatchDismissed), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

// SetMatchStatus records a user action on a match.
func (s *Store) SetMatchStatus(ctx context.Context, matchID string, status model.MatchStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), fmtTime(s.now()), matchID)
	return err
}

// GetMatch loads one (profile, opportunity) pairing; (nil, nil) when absent.
func (s *Store) GetMatch(ctx context.Context, profileID, opportunityID string) (*model.Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		WHERE profile_id = ? AND opportunity_id = ?`, profileID, opportunityID)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func scanMatch(row rowScanner) (*model.Match, error) {
	var (
		m                              model.Match
		breakdown, reasons             sql.NullString
		suggestions, matchReasons      sql.NullString
		status, createdAt, updatedAt   string
	)
	if err := row.Scan(&m.ID, &m.ProfileID, &m.OpportunityID, &m.Score,
		&breakdown, &m.Eligible, &reasons, &suggestions, &matchReasons,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	scanJSON(breakdown, &m.Breakdown)
	scanJSON(reasons, &m.Reasons)
	scanJSON(suggestions, &m.Suggestions)
	scanJSON(matchReasons, &m.MatchReasons)
	m.Status = model.MatchStatus(status)

	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMatches(rows *sql.Rows) ([]model.Match, error) {
	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
