package store

// Schema migrations are additive statements replayed at every open.
// CREATE ... IF NOT EXISTS keeps them idempotent; column changes get a new
// numbered entry rather than editing an old one.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS opportunities (
		id                   TEXT PRIMARY KEY,
		source               TEXT NOT NULL,
		external_id          TEXT NOT NULL,
		title                TEXT NOT NULL,
		description          TEXT,
		short_description    TEXT,
		opportunity_type     TEXT NOT NULL,
		format               TEXT NOT NULL DEFAULT 'unknown',
		location             TEXT,
		urls                 TEXT,
		themes               TEXT,
		technologies         TEXT,
		prizes               TEXT,
		total_prize_value    REAL,
		currency             TEXT,
		team_size_min        INTEGER,
		team_size_max        INTEGER,
		application_deadline DATETIME,
		event_start_date     DATETIME,
		event_end_date       DATETIME,
		is_student_only      INTEGER NOT NULL DEFAULT 0,
		is_active            INTEGER NOT NULL DEFAULT 1,
		eligibility          TEXT,
		embedding            TEXT,
		raw_data             TEXT,
		created_at           DATETIME NOT NULL,
		updated_at           DATETIME NOT NULL,
		UNIQUE(source, external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_type
		ON opportunities(opportunity_type)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_active
		ON opportunities(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_deadline
		ON opportunities(application_deadline)`,

	`CREATE TABLE IF NOT EXISTS profiles (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		display_name TEXT,
		bio          TEXT,
		profile_type TEXT,
		stage        TEXT,
		tech_stack   TEXT,
		industries   TEXT,
		intents      TEXT,
		team_size    INTEGER NOT NULL DEFAULT 1,
		region       TEXT,
		is_student   INTEGER NOT NULL DEFAULT 0,
		is_remote_ok INTEGER NOT NULL DEFAULT 0,
		embedding    TEXT,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id)`,

	`CREATE TABLE IF NOT EXISTS matches (
		id             TEXT PRIMARY KEY,
		profile_id     TEXT NOT NULL,
		opportunity_id TEXT NOT NULL,
		score          REAL NOT NULL,
		breakdown      TEXT,
		eligible       INTEGER NOT NULL DEFAULT 0,
		reasons        TEXT,
		suggestions    TEXT,
		match_reasons  TEXT,
		status         TEXT NOT NULL DEFAULT 'pending',
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL,
		UNIQUE(profile_id, opportunity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_profile_score
		ON matches(profile_id, score DESC)`,

	`CREATE TABLE IF NOT EXISTS scraper_runs (
		id                    TEXT PRIMARY KEY,
		scraper_name          TEXT NOT NULL,
		started_at            DATETIME NOT NULL,
		completed_at          DATETIME,
		status                TEXT NOT NULL,
		opportunities_found   INTEGER NOT NULL DEFAULT 0,
		opportunities_created INTEGER NOT NULL DEFAULT 0,
		opportunities_updated INTEGER NOT NULL DEFAULT 0,
		errors                TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scraper_runs_status
		ON scraper_runs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_scraper_runs_started
		ON scraper_runs(started_at)`,
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// initVecIndex creates the ANN side table when the extension is loaded.
// Kept out of migrations: vec0 virtual tables only exist on vec builds.
func (s *Store) initVecIndex() error {
	_, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS opportunities_vec
		USING vec0(opportunity_id TEXT, embedding float[1536])`)
	return err
}
