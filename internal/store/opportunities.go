package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oppradar/internal/model"
	"oppradar/internal/source"
)

// UpsertKind reports what the upsert did.
type UpsertKind string

const (
	UpsertInserted UpsertKind = "inserted"
	UpsertUpdated  UpsertKind = "updated"
	UpsertSkipped  UpsertKind = "skipped"
)

// UpsertResult is the outcome of one upsert.
type UpsertResult struct {
	Kind UpsertKind
	ID   string
}

const oppColumns = `id, source, external_id, title, description, short_description,
	opportunity_type, format, location, urls, themes, technologies, prizes,
	total_prize_value, currency, team_size_min, team_size_max,
	application_deadline, event_start_date, event_end_date,
	is_student_only, is_active, eligibility, embedding, raw_data,
	created_at, updated_at`

// UpsertOpportunity inserts or updates one record keyed on
// (source, external_id). Inserts assign the id and both timestamps; updates
// overwrite the mutable fields and updated_at, preserving id, created_at,
// and the stored embedding. An identical payload is skipped untouched.
// A unique-violation from a lost insert race retries once as an update.
func (s *Store) UpsertOpportunity(ctx context.Context, opp *model.Opportunity) (UpsertResult, error) {
	if opp.Source == "" || opp.ExternalID == "" {
		return UpsertResult{}, source.NewError(source.KindInvalidInput, opp.Source, "upsert",
			fmt.Errorf("missing source or external_id"))
	}
	if opp.Title == "" {
		return UpsertResult{}, source.NewError(source.KindInvalidInput, opp.Source, "upsert",
			fmt.Errorf("missing title for %s", opp.ExternalID))
	}

	existing, err := s.getByKey(ctx, opp.Source, opp.ExternalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, insErr := s.insertOpportunity(ctx, opp)
		if insErr != nil && isUniqueViolation(insErr) {
			// Lost the race to a concurrent insert; retry as an update.
			s.log.Debug("upsert race lost, retrying as update",
				zap.String("source", opp.Source), zap.String("external_id", opp.ExternalID))
			existing, err = s.getByKey(ctx, opp.Source, opp.ExternalID)
			if err != nil {
				return UpsertResult{}, source.NewError(source.KindConflict, opp.Source, "upsert", err)
			}
			return s.updateOpportunity(ctx, existing, opp)
		}
		return res, insErr
	case err != nil:
		return UpsertResult{}, source.NewError(source.KindProvider, opp.Source, "upsert", err)
	default:
		return s.updateOpportunity(ctx, existing, opp)
	}
}

func (s *Store) insertOpportunity(ctx context.Context, opp *model.Opportunity) (UpsertResult, error) {
	now := s.now()
	opp.ID = uuid.NewString()
	opp.CreatedAt = now
	opp.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO opportunities (`+oppColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		opp.ID, opp.Source, opp.ExternalID, opp.Title,
		nullStr(opp.Description), nullStr(opp.ShortDescription),
		string(opp.Type), string(opp.Format),
		jsonColumn(opp.Location), jsonColumn(opp.Links),
		jsonColumn(opp.Themes), jsonColumn(opp.Technologies), jsonColumn(opp.Prizes),
		nullFloat(opp.TotalPrizeValue), nullStr(opp.Currency),
		nullInt(opp.TeamSizeMin), nullInt(opp.TeamSizeMax),
		fmtTimePtr(opp.ApplicationDeadline), fmtTimePtr(opp.EventStartDate), fmtTimePtr(opp.EventEndDate),
		opp.IsStudentOnly, opp.IsActive,
		jsonColumn(opp.Eligibility), encodeVector(opp.Embedding), jsonColumn(opp.RawData),
		fmtTime(opp.CreatedAt), fmtTime(opp.UpdatedAt))
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Kind: UpsertInserted, ID: opp.ID}, nil
}

func (s *Store) updateOpportunity(ctx context.Context, existing, opp *model.Opportunity) (UpsertResult, error) {
	opp.ID = existing.ID
	opp.CreatedAt = existing.CreatedAt
	opp.Embedding = existing.Embedding

	if samePayload(existing, opp) {
		opp.UpdatedAt = existing.UpdatedAt
		return UpsertResult{Kind: UpsertSkipped, ID: existing.ID}, nil
	}

	opp.UpdatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `UPDATE opportunities SET
		title = ?, description = ?, short_description = ?,
		opportunity_type = ?, format = ?, location = ?, urls = ?,
		themes = ?, technologies = ?, prizes = ?,
		total_prize_value = ?, currency = ?,
		team_size_min = ?, team_size_max = ?,
		application_deadline = ?, event_start_date = ?, event_end_date = ?,
		is_student_only = ?, is_active = ?, eligibility = ?, raw_data = ?,
		updated_at = ?
		WHERE id = ?`,
		opp.Title, nullStr(opp.Description), nullStr(opp.ShortDescription),
		string(opp.Type), string(opp.Format),
		jsonColumn(opp.Location), jsonColumn(opp.Links),
		jsonColumn(opp.Themes), jsonColumn(opp.Technologies), jsonColumn(opp.Prizes),
		nullFloat(opp.TotalPrizeValue), nullStr(opp.Currency),
		nullInt(opp.TeamSizeMin), nullInt(opp.TeamSizeMax),
		fmtTimePtr(opp.ApplicationDeadline), fmtTimePtr(opp.EventStartDate), fmtTimePtr(opp.EventEndDate),
		opp.IsStudentOnly, opp.IsActive, jsonColumn(opp.Eligibility), jsonColumn(opp.RawData),
		fmtTime(opp.UpdatedAt), opp.ID)
	if err != nil {
		return UpsertResult{}, source.NewError(source.KindProvider, opp.Source, "upsert", err)
	}
	return UpsertResult{Kind: UpsertUpdated, ID: opp.ID}, nil
}

// payloadFingerprint is the comparable slice of the mutable fields.
type payloadFingerprint struct {
	Title            string
	Description      string
	ShortDescription string
	Type             model.OpportunityType
	Format           model.Format
	Location         *model.Location
	Links            model.Links
	Themes           []string
	Technologies     []string
	Prizes           []model.Prize
	TotalPrizeValue  *float64
	Currency         string
	TeamSizeMin      *int
	TeamSizeMax      *int
	Deadline         *time.Time
	Start            *time.Time
	End              *time.Time
	StudentOnly      bool
	Active           bool
	Eligibility      string
}

func fingerprint(o *model.Opportunity) string {
	data, _ := json.Marshal(payloadFingerprint{
		Title:            o.Title,
		Description:      o.Description,
		ShortDescription: o.ShortDescription,
		Type:             o.Type,
		Format:           o.Format,
		Location:         o.Location,
		Links:            o.Links,
		Themes:           o.Themes,
		Technologies:     o.Technologies,
		Prizes:           o.Prizes,
		TotalPrizeValue:  o.TotalPrizeValue,
		Currency:         o.Currency,
		TeamSizeMin:      o.TeamSizeMin,
		TeamSizeMax:      o.TeamSizeMax,
		Deadline:         o.ApplicationDeadline,
		Start:            o.EventStartDate,
		End:              o.EventEndDate,
		StudentOnly:      o.IsStudentOnly,
		Active:           o.IsActive,
		Eligibility:      string(o.Eligibility),
	})
	return string(data)
}

func samePayload(a, b *model.Opportunity) bool {
	return fingerprint(a) == fingerprint(b)
}

func (s *Store) getByKey(ctx context.Context, src, externalID string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+oppColumns+` FROM opportunities WHERE source = ? AND external_id = ?`,
		src, externalID)
	return scanOpportunity(row)
}

// GetOpportunity loads one record by id; (nil, nil) when absent.
func (s *Store) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+oppColumns+` FROM opportunities WHERE id = ?`, id)
	opp, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return opp, err
}

// ListFilter narrows ListOpportunities. Zero values mean "no constraint".
type ListFilter struct {
	Type     string
	Category string // matched case-insensitively against themes
	Search   string // substring over title and description
	Skip     int
	Limit    int
}

// ListOpportunities returns one page of active records plus the total count
// for the same filter. Limit is clamped to [1, 100].
func (s *Store) ListOpportunities(ctx context.Context, f ListFilter) ([]model.Opportunity, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}

	where := []string{"is_active = 1"}
	var args []any
	if f.Type != "" {
		where = append(where, "opportunity_type = ?")
		args = append(args, strings.ToLower(f.Type))
	}
	if f.Category != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(opportunities.themes)
			WHERE lower(json_each.value) = lower(?))`)
		args = append(args, f.Category)
	}
	if f.Search != "" {
		where = append(where, "(lower(title) LIKE ? OR lower(description) LIKE ?)")
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM opportunities WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+oppColumns+` FROM opportunities WHERE `+clause+`
		ORDER BY application_deadline IS NULL, application_deadline ASC, created_at DESC
		LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	opps, err := scanOpportunities(rows)
	return opps, total, err
}

// ActiveOpportunities streams active records for matching, paged to bound
// memory.
func (s *Store) ActiveOpportunities(ctx context.Context, limit, offset int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+oppColumns+` FROM opportunities WHERE is_active = 1
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// ExpireDeadlines soft-deletes records whose deadline has passed.
func (s *Store) ExpireDeadlines(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET is_active = 0, updated_at = ?
		WHERE is_active = 1 AND application_deadline IS NOT NULL AND application_deadline < ?`,
		fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (*model.Opportunity, error) {
	var (
		o                                  model.Opportunity
		description, shortDesc             sql.NullString
		oppType, format                    string
		location, urls, themes             sql.NullString
		technologies, prizes               sql.NullString
		totalPrize                         sql.NullFloat64
		currency                           sql.NullString
		teamMin, teamMax                   sql.NullInt64
		deadline, start, end               sql.NullString
		eligibility, embeddingCol, rawData sql.NullString
		createdAt, updatedAt               string
	)
	if err := row.Scan(&o.ID, &o.Source, &o.ExternalID, &o.Title, &description, &shortDesc,
		&oppType, &format, &location, &urls, &themes, &technologies, &prizes,
		&totalPrize, &currency, &teamMin, &teamMax,
		&deadline, &start, &end,
		&o.IsStudentOnly, &o.IsActive, &eligibility, &embeddingCol, &rawData,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	o.Description = description.String
	o.ShortDescription = shortDesc.String
	o.Type = model.ParseOpportunityType(oppType)
	o.Format = model.Format(format)
	scanJSON(location, &o.Location)
	scanJSON(urls, &o.Links)
	scanJSON(themes, &o.Themes)
	scanJSON(technologies, &o.Technologies)
	scanJSON(prizes, &o.Prizes)
	o.TotalPrizeValue = floatPtr(totalPrize)
	o.Currency = currency.String
	o.TeamSizeMin = intPtr(teamMin)
	o.TeamSizeMax = intPtr(teamMax)
	o.ApplicationDeadline = parseTimePtr(deadline)
	o.EventStartDate = parseTimePtr(start)
	o.EventEndDate = parseTimePtr(end)
	if eligibility.Valid {
		o.Eligibility = json.RawMessage(eligibility.String)
	}
	o.Embedding = decodeVector(embeddingCol)
	if rawData.Valid {
		o.RawData = json.RawMessage(rawData.String)
	}

	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &o, nil
}

func scanOpportunities(rows *sql.Rows) ([]model.Opportunity, error) {
	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
