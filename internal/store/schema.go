package store

// Both dialects share the same tables. Text columns that are optional in the
// source data are NOT NULL DEFAULT '' so scans never see NULL.

const postgresMigration = `
CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	domain       TEXT NOT NULL,
	domain_key   TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assessment_runs (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL REFERENCES workspaces(id),
	company_id        TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	total_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	mention_rate      DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	citation_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	competitive_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS questions (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES assessment_runs(id),
	text       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS responses (
	id                TEXT PRIMARY KEY,
	question_id       TEXT NOT NULL REFERENCES questions(id),
	full_response     TEXT NOT NULL DEFAULT '',
	mention_detected  BOOLEAN NOT NULL DEFAULT false,
	mention_position  TEXT NOT NULL DEFAULT '',
	mention_sentiment TEXT NOT NULL DEFAULT '',
	mention_context   TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS citations (
	id              TEXT PRIMARY KEY,
	response_id     TEXT NOT NULL REFERENCES responses(id),
	url             TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	domain          TEXT NOT NULL DEFAULT '',
	excerpt         TEXT NOT NULL DEFAULT '',
	bucket          TEXT NOT NULL DEFAULT '',
	influence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	position        INTEGER NOT NULL DEFAULT 0,
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS competitors (
	id                  TEXT PRIMARY KEY,
	run_id              TEXT NOT NULL REFERENCES assessment_runs(id),
	name                TEXT NOT NULL,
	domain              TEXT NOT NULL DEFAULT '',
	ai_visibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	mention_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	rank_position       INTEGER
);

CREATE INDEX IF NOT EXISTS idx_companies_domain_key ON companies(domain_key);
CREATE INDEX IF NOT EXISTS idx_runs_workspace_created ON assessment_runs(workspace_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON assessment_runs(status);
CREATE INDEX IF NOT EXISTS idx_questions_run_id ON questions(run_id);
CREATE INDEX IF NOT EXISTS idx_responses_question_id ON responses(question_id);
CREATE INDEX IF NOT EXISTS idx_citations_response_id ON citations(response_id);
CREATE INDEX IF NOT EXISTS idx_competitors_run_id ON competitors(run_id);
`

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	domain       TEXT NOT NULL,
	domain_key   TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assessment_runs (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL REFERENCES workspaces(id),
	company_id        TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	total_score       REAL NOT NULL DEFAULT 0,
	mention_rate      REAL NOT NULL DEFAULT 0,
	sentiment_score   REAL NOT NULL DEFAULT 0,
	citation_score    REAL NOT NULL DEFAULT 0,
	competitive_score REAL NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES assessment_runs(id),
	text       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
	id                TEXT PRIMARY KEY,
	question_id       TEXT NOT NULL REFERENCES questions(id),
	full_response     TEXT NOT NULL DEFAULT '',
	mention_detected  INTEGER NOT NULL DEFAULT 0,
	mention_position  TEXT NOT NULL DEFAULT '',
	mention_sentiment TEXT NOT NULL DEFAULT '',
	mention_context   TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS citations (
	id              TEXT PRIMARY KEY,
	response_id     TEXT NOT NULL REFERENCES responses(id),
	url             TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	domain          TEXT NOT NULL DEFAULT '',
	excerpt         TEXT NOT NULL DEFAULT '',
	bucket          TEXT NOT NULL DEFAULT '',
	influence_score REAL NOT NULL DEFAULT 0,
	position        INTEGER NOT NULL DEFAULT 0,
	relevance_score REAL NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS competitors (
	id                  TEXT PRIMARY KEY,
	run_id              TEXT NOT NULL REFERENCES assessment_runs(id),
	name                TEXT NOT NULL,
	domain              TEXT NOT NULL DEFAULT '',
	ai_visibility_score REAL NOT NULL DEFAULT 0,
	mention_rate        REAL NOT NULL DEFAULT 0,
	rank_position       INTEGER
);

CREATE INDEX IF NOT EXISTS idx_companies_domain_key ON companies(domain_key);
CREATE INDEX IF NOT EXISTS idx_runs_workspace_created ON assessment_runs(workspace_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_questions_run_id ON questions(run_id);
CREATE INDEX IF NOT EXISTS idx_responses_question_id ON responses(question_id);
CREATE INDEX IF NOT EXISTS idx_citations_response_id ON citations(response_id);
CREATE INDEX IF NOT EXISTS idx_competitors_run_id ON competitors(run_id);
`
