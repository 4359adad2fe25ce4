package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"oppradar/internal/embedding"
	"oppradar/internal/model"
)

const profileColumns = `id, user_id, display_name, bio, profile_type, stage,
	tech_stack, industries, intents, team_size, region,
	is_student, is_remote_ok, embedding, created_at, updated_at`

// SaveProfile inserts or fully replaces a profile row. The outer service
// layer owns profile contents; the core only reads them and maintains the
// vector.
func (s *Store) SaveProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.TeamSize <= 0 {
		p.TeamSize = 1
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (`+profileColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			bio = excluded.bio,
			profile_type = excluded.profile_type,
			stage = excluded.stage,
			tech_stack = excluded.tech_stack,
			industries = excluded.industries,
			intents = excluded.intents,
			team_size = excluded.team_size,
			region = excluded.region,
			is_student = excluded.is_student,
			is_remote_ok = excluded.is_remote_ok,
			updated_at = excluded.updated_at`,
		p.ID, p.UserID,
		nullStr(p.DisplayName), nullStr(p.Bio), nullStr(p.ProfileType), nullStr(p.Stage),
		jsonColumn(p.TechStack), jsonColumn(p.Industries), jsonColumn(p.Intents),
		p.TeamSize, nullStr(p.Region), p.IsStudent, p.IsRemoteOK,
		encodeVector(p.Embedding),
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return err
}

// GetProfile loads one profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s not found", id)
	}
	return p, err
}

// SaveProfileEmbedding writes a profile's vector.
func (s *Store) SaveProfileEmbedding(ctx context.Context, id string, vec []float32) error {
	if len(vec) != embedding.Dimensions {
		return fmt.Errorf("embedding for profile %s has %d dimensions, want %d",
			id, len(vec), embedding.Dimensions)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET embedding = ?, updated_at = ? WHERE id = ?`,
		encodeVector(vec), fmtTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %s not found", id)
	}
	return nil
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		p                               model.Profile
		displayName, bio                sql.NullString
		profileType, stage              sql.NullString
		techStack, industries, intents  sql.NullString
		region, embeddingCol            sql.NullString
		createdAt, updatedAt            string
	)
	if err := row.Scan(&p.ID, &p.UserID, &displayName, &bio, &profileType, &stage,
		&techStack, &industries, &intents, &p.TeamSize, &region,
		&p.IsStudent, &p.IsRemoteOK, &embeddingCol, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.DisplayName = displayName.String
	p.Bio = bio.String
	p.ProfileType = profileType.String
	p.Stage = stage.String
	scanJSON(techStack, &p.TechStack)
	scanJSON(industries, &p.Industries)
	scanJSON(intents, &p.Intents)
	p.Region = region.String
	p.Embedding = decodeVector(embeddingCol)

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
