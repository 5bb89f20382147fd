package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/splitlabs/max-visibility/internal/db"
	"github.com/splitlabs/max-visibility/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Reads ---

const runColumns = `id, workspace_id, company_id, status, total_score, mention_rate,
	sentiment_score, citation_score, competitive_score, created_at, updated_at`

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (*model.Workspace, error) {
	var ws model.Workspace
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, domain FROM workspaces WHERE id = $1`,
		workspaceID,
	).Scan(&ws.ID, &ws.Name, &ws.Domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get workspace %s", workspaceID)
	}
	return &ws, nil
}

func (s *PostgresStore) FindCompanyByDomain(ctx context.Context, workspaceID, domain string) (*model.Company, error) {
	key := model.NormalizeDomain(domain)
	if key == "" {
		return nil, nil
	}
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, domain FROM companies WHERE domain_key = $1
		ORDER BY (workspace_id = $2) DESC, created_at, id LIMIT 1`,
		key, workspaceID,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find company %s", key)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompletedRuns(ctx context.Context, workspaceID string) ([]model.AssessmentRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM assessment_runs
		WHERE workspace_id = $1 AND status = $2
		ORDER BY created_at, id`,
		workspaceID, string(model.RunStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list completed runs")
	}
	return collectRuns(rows)
}

func (s *PostgresStore) ListRuns(ctx context.Context, workspaceID string, filter RunFilter) ([]model.AssessmentRun, error) {
	query := `SELECT ` + runColumns + ` FROM assessment_runs WHERE workspace_id = $1`
	args := []any{workspaceID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	return collectRuns(rows)
}

func collectRuns(rows pgx.Rows) ([]model.AssessmentRun, error) {
	defer rows.Close()
	runs := []model.AssessmentRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) ListQuestions(ctx context.Context, runID string) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, text, created_at FROM questions WHERE run_id = $1 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list questions for run %s", runID)
	}
	defer rows.Close()

	out := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.RunID, &q.Text, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan question")
		}
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate questions")
}

func (s *PostgresStore) ListResponses(ctx context.Context, questionIDs []string) ([]model.Response, error) {
	out := []model.Response{}
	if len(questionIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, full_response, mention_detected, mention_position,
			mention_sentiment, mention_context, created_at
		FROM responses WHERE question_id = ANY($1) ORDER BY created_at, id`,
		questionIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list responses")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan response")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate responses")
}

func (s *PostgresStore) ListCitations(ctx context.Context, questionIDs []string) ([]model.CitationRow, error) {
	out := []model.CitationRow{}
	if len(questionIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+citationRowColumns+`
		FROM citations c
		JOIN responses r ON r.id = c.response_id
		JOIN questions q ON q.id = r.question_id
		WHERE r.question_id = ANY($1)
		ORDER BY c.created_at, c.id`,
		questionIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list citations")
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanCitationRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan citation")
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate citations")
}

func (s *PostgresStore) ListCompetitors(ctx context.Context, runIDs []string) ([]model.CompetitorRecord, error) {
	out := []model.CompetitorRecord{}
	if len(runIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+competitorColumns+`
		FROM competitors c
		JOIN assessment_runs r ON r.id = c.run_id
		WHERE c.run_id = ANY($1)
		ORDER BY r.created_at, r.id, c.id`,
		runIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list competitors")
	}
	defer rows.Close()

	for rows.Next() {
		var c model.CompetitorRecord
		if err := rows.Scan(&c.ID, &c.RunID, &c.Name, &c.Domain, &c.AIVisibilityScore, &c.PerRunMentionRate, &c.RankPosition); err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate competitors")
}

// --- Writes ---

func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws model.Workspace) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workspaces (id, name, domain) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, domain = EXCLUDED.domain`,
		ws.ID, ws.Name, ws.Domain,
	)
	return eris.Wrapf(err, "postgres: upsert workspace %s", ws.ID)
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c model.Company) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, workspace_id, name, domain, domain_key) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET workspace_id = EXCLUDED.workspace_id, name = EXCLUDED.name,
			domain = EXCLUDED.domain, domain_key = EXCLUDED.domain_key`,
		c.ID, c.WorkspaceID, c.Name, c.Domain, model.NormalizeDomain(c.Domain),
	)
	return eris.Wrapf(err, "postgres: upsert company %s", c.ID)
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.AssessmentRun) (*model.AssessmentRun, error) {
	run, err := prepareRun(run)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessment_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		run.ID, run.WorkspaceID, run.CompanyID, string(run.Status), run.TotalScore, run.PerRunMentionRate,
		run.SentimentScore, run.CitationScore, run.CompetitiveScore, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	var current model.RunStatus
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM assessment_runs WHERE id = $1`, runID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: get run status %s", runID)
	}
	if err := checkTransition(runID, current, status); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE assessment_runs SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(status), time.Now().UTC(), runID, string(current),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrInvalidTransition, "run %s changed concurrently", runID)
	}
	return nil
}

func (s *PostgresStore) AddQuestions(ctx context.Context, questions []model.Question) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, []any{orNewID(q.ID), q.RunID, q.Text, orNow(q.CreatedAt, now)})
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "questions",
		Columns:      []string{"id", "run_id", "text", "created_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: add questions")
}

func (s *PostgresStore) AddResponses(ctx context.Context, responses []model.Response) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(responses))
	for _, r := range responses {
		rows = append(rows, []any{
			orNewID(r.ID), r.QuestionID, r.FullResponse, r.MentionDetected, r.MentionPosition,
			r.MentionSentiment, r.MentionContext, orNow(r.CreatedAt, now),
		})
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table: "responses",
		Columns: []string{
			"id", "question_id", "full_response", "mention_detected", "mention_position",
			"mention_sentiment", "mention_context", "created_at",
		},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: add responses")
}

func (s *PostgresStore) AddCitations(ctx context.Context, citations []model.Citation) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(citations))
	for _, c := range citations {
		rows = append(rows, []any{
			orNewID(c.ID), c.ResponseID, c.URL, c.Title, c.Domain, c.Excerpt, c.Bucket,
			c.InfluenceScore, c.PositionInCitations, c.RelevanceScore, orNow(c.CreatedAt, now),
		})
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table: "citations",
		Columns: []string{
			"id", "response_id", "url", "title", "domain", "excerpt", "bucket",
			"influence_score", "position", "relevance_score", "created_at",
		},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: add citations")
}

func (s *PostgresStore) AddCompetitors(ctx context.Context, competitors []model.CompetitorRecord) (int64, error) {
	rows := make([][]any, 0, len(competitors))
	for _, c := range competitors {
		rows = append(rows, []any{
			orNewID(c.ID), c.RunID, c.Name, c.Domain, c.AIVisibilityScore, c.PerRunMentionRate, c.RankPosition,
		})
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "competitors",
		Columns:      []string{"id", "run_id", "name", "domain", "ai_visibility_score", "mention_rate", "rank_position"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: add competitors")
}

// --- Shared helpers ---

const citationRowColumns = `c.id, c.response_id, c.url, c.title, c.domain, c.excerpt, c.bucket,
	c.influence_score, c.position, c.relevance_score, c.created_at,
	q.id, q.text, r.full_response, r.mention_context`

const competitorColumns = `c.id, c.run_id, c.name, c.domain, c.ai_visibility_score, c.mention_rate, c.rank_position`

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (model.AssessmentRun, error) {
	var r model.AssessmentRun
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.CompanyID, &r.Status, &r.TotalScore, &r.PerRunMentionRate,
		&r.SentimentScore, &r.CitationScore, &r.CompetitiveScore, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanResponse(row scannable) (model.Response, error) {
	var r model.Response
	err := row.Scan(&r.ID, &r.QuestionID, &r.FullResponse, &r.MentionDetected, &r.MentionPosition,
		&r.MentionSentiment, &r.MentionContext, &r.CreatedAt)
	return r, err
}

func scanCitationRow(row scannable) (model.CitationRow, error) {
	var c model.CitationRow
	err := row.Scan(&c.ID, &c.ResponseID, &c.URL, &c.Title, &c.Domain, &c.Excerpt, &c.Bucket,
		&c.InfluenceScore, &c.PositionInCitations, &c.RelevanceScore, &c.CreatedAt,
		&c.QuestionID, &c.QuestionText, &c.FullResponse, &c.MentionContext)
	return c, err
}

// prepareRun fills a new run's ID, status and timestamps.
func prepareRun(run model.AssessmentRun) (model.AssessmentRun, error) {
	if run.WorkspaceID == "" {
		return run, eris.New("store: run requires a workspace")
	}
	if run.Status == "" {
		run.Status = model.RunStatusPending
	}
	if !run.Status.Valid() {
		return run, eris.Errorf("store: unknown run status %q", run.Status)
	}
	run.ID = orNewID(run.ID)
	now := time.Now().UTC()
	run.CreatedAt = orNow(run.CreatedAt, now).UTC()
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	run.UpdatedAt = run.UpdatedAt.UTC()
	return run, nil
}

func orNewID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t.UTC()
}
