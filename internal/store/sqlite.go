package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/splitlabs/max-visibility/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Reads ---

func (s *SQLiteStore) GetWorkspace(ctx context.Context, workspaceID string) (*model.Workspace, error) {
	var ws model.Workspace
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain FROM workspaces WHERE id = ?`, workspaceID,
	).Scan(&ws.ID, &ws.Name, &ws.Domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get workspace %s", workspaceID)
	}
	return &ws, nil
}

func (s *SQLiteStore) FindCompanyByDomain(ctx context.Context, workspaceID, domain string) (*model.Company, error) {
	key := model.NormalizeDomain(domain)
	if key == "" {
		return nil, nil
	}
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, domain FROM companies WHERE domain_key = ?
		ORDER BY (workspace_id = ?) DESC, created_at, id LIMIT 1`,
		key, workspaceID,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find company %s", key)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompletedRuns(ctx context.Context, workspaceID string) ([]model.AssessmentRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM assessment_runs
		WHERE workspace_id = ? AND status = ?
		ORDER BY created_at, id`,
		workspaceID, string(model.RunStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list completed runs")
	}
	return collectSQLiteRuns(rows)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, workspaceID string, filter RunFilter) ([]model.AssessmentRun, error) {
	query := `SELECT ` + runColumns + ` FROM assessment_runs WHERE workspace_id = ?`
	args := []any{workspaceID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	return collectSQLiteRuns(rows)
}

func collectSQLiteRuns(rows *sql.Rows) ([]model.AssessmentRun, error) {
	defer rows.Close() //nolint:errcheck
	runs := []model.AssessmentRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, runID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, text, created_at FROM questions WHERE run_id = ? ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list questions for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.RunID, &q.Text, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan question")
		}
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate questions")
}

func (s *SQLiteStore) ListResponses(ctx context.Context, questionIDs []string) ([]model.Response, error) {
	out := []model.Response{}
	if len(questionIDs) == 0 {
		return out, nil
	}
	in, args := inClause(questionIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, full_response, mention_detected, mention_position,
			mention_sentiment, mention_context, created_at
		FROM responses WHERE question_id IN (`+in+`) ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list responses")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate responses")
}

func (s *SQLiteStore) ListCitations(ctx context.Context, questionIDs []string) ([]model.CitationRow, error) {
	out := []model.CitationRow{}
	if len(questionIDs) == 0 {
		return out, nil
	}
	in, args := inClause(questionIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+citationRowColumns+`
		FROM citations c
		JOIN responses r ON r.id = c.response_id
		JOIN questions q ON q.id = r.question_id
		WHERE r.question_id IN (`+in+`)
		ORDER BY c.created_at, c.id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list citations")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		row, err := scanCitationRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan citation")
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate citations")
}

func (s *SQLiteStore) ListCompetitors(ctx context.Context, runIDs []string) ([]model.CompetitorRecord, error) {
	out := []model.CompetitorRecord{}
	if len(runIDs) == 0 {
		return out, nil
	}
	in, args := inClause(runIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+competitorColumns+`
		FROM competitors c
		JOIN assessment_runs r ON r.id = c.run_id
		WHERE c.run_id IN (`+in+`)
		ORDER BY r.created_at, r.id, c.id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list competitors")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var c model.CompetitorRecord
		var rank sql.NullInt64
		if err := rows.Scan(&c.ID, &c.RunID, &c.Name, &c.Domain, &c.AIVisibilityScore, &c.PerRunMentionRate, &rank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan competitor")
		}
		if rank.Valid {
			v := int(rank.Int64)
			c.RankPosition = &v
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate competitors")
}

// --- Writes ---

func (s *SQLiteStore) CreateWorkspace(ctx context.Context, ws model.Workspace) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, domain) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, domain = excluded.domain`,
		ws.ID, ws.Name, ws.Domain,
	)
	return eris.Wrapf(err, "sqlite: upsert workspace %s", ws.ID)
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c model.Company) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, workspace_id, name, domain, domain_key) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET workspace_id = excluded.workspace_id, name = excluded.name,
			domain = excluded.domain, domain_key = excluded.domain_key`,
		c.ID, c.WorkspaceID, c.Name, c.Domain, model.NormalizeDomain(c.Domain),
	)
	return eris.Wrapf(err, "sqlite: upsert company %s", c.ID)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.AssessmentRun) (*model.AssessmentRun, error) {
	run, err := prepareRun(run)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO assessment_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkspaceID, run.CompanyID, string(run.Status), run.TotalScore, run.PerRunMentionRate,
		run.SentimentScore, run.CitationScore, run.CompetitiveScore, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	var current model.RunStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM assessment_runs WHERE id = ?`, runID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: get run status %s", runID)
	}
	if err := checkTransition(runID, current, status); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE assessment_runs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), time.Now().UTC(), runID, string(current),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrInvalidTransition, "run %s changed concurrently", runID)
	}
	return nil
}

func (s *SQLiteStore) AddQuestions(ctx context.Context, questions []model.Question) (int64, error) {
	now := time.Now().UTC()
	return s.insertAll(ctx, "questions",
		`INSERT OR IGNORE INTO questions (id, run_id, text, created_at) VALUES (?, ?, ?, ?)`,
		len(questions), func(i int) []any {
			q := questions[i]
			return []any{orNewID(q.ID), q.RunID, q.Text, orNow(q.CreatedAt, now)}
		})
}

func (s *SQLiteStore) AddResponses(ctx context.Context, responses []model.Response) (int64, error) {
	now := time.Now().UTC()
	return s.insertAll(ctx, "responses",
		`INSERT OR IGNORE INTO responses (id, question_id, full_response, mention_detected, mention_position,
			mention_sentiment, mention_context, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		len(responses), func(i int) []any {
			r := responses[i]
			return []any{
				orNewID(r.ID), r.QuestionID, r.FullResponse, r.MentionDetected, r.MentionPosition,
				r.MentionSentiment, r.MentionContext, orNow(r.CreatedAt, now),
			}
		})
}

func (s *SQLiteStore) AddCitations(ctx context.Context, citations []model.Citation) (int64, error) {
	now := time.Now().UTC()
	return s.insertAll(ctx, "citations",
		`INSERT OR IGNORE INTO citations (id, response_id, url, title, domain, excerpt, bucket,
			influence_score, position, relevance_score, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(citations), func(i int) []any {
			c := citations[i]
			return []any{
				orNewID(c.ID), c.ResponseID, c.URL, c.Title, c.Domain, c.Excerpt, c.Bucket,
				c.InfluenceScore, c.PositionInCitations, c.RelevanceScore, orNow(c.CreatedAt, now),
			}
		})
}

func (s *SQLiteStore) AddCompetitors(ctx context.Context, competitors []model.CompetitorRecord) (int64, error) {
	return s.insertAll(ctx, "competitors",
		`INSERT OR IGNORE INTO competitors (id, run_id, name, domain, ai_visibility_score, mention_rate, rank_position)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(competitors), func(i int) []any {
			c := competitors[i]
			return []any{orNewID(c.ID), c.RunID, c.Name, c.Domain, c.AIVisibilityScore, c.PerRunMentionRate, c.RankPosition}
		})
}

// insertAll runs one prepared insert per row inside a single transaction
// and returns the number of rows actually inserted.
func (s *SQLiteStore) insertAll(ctx context.Context, table, query string, n int, args func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin insert %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for i := 0; i < n; i++ {
		res, err := stmt.ExecContext(ctx, args(i)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s row %d", table, i)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit insert %s", table)
	}
	return inserted, nil
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
