package visibility

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/splitlabs/max-visibility/internal/metrics"
	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/resilience"
)

// ErrRepository marks a hard read failure. It is the only error Snapshot
// returns; every other condition degrades or yields an empty state.
var ErrRepository = eris.New("visibility: failed to retrieve visibility data")

// Guidance messages for the empty states.
const (
	MsgNoDomain     = "Configure a domain for this workspace to start tracking AI visibility."
	MsgNoCompany    = "No company matches this workspace's domain yet."
	MsgNoAssessment = "Run your first scan to see how AI engines mention your brand."
)

// Section names reported in CompetitiveSnapshot.Warnings.
const (
	SectionCitations   = "citations"
	SectionCompetitors = "competitors"
)

// Repository is the read side consumed by the Service. Lookups return nil
// without error when the entity does not exist. List methods return rows
// in a stable order: runs and competitors by created_at then id.
type Repository interface {
	GetWorkspace(ctx context.Context, workspaceID string) (*model.Workspace, error)
	// FindCompanyByDomain prefers a company owned by workspaceID over one
	// registered by another workspace under the same domain.
	FindCompanyByDomain(ctx context.Context, workspaceID, domain string) (*model.Company, error)
	ListCompletedRuns(ctx context.Context, workspaceID string) ([]model.AssessmentRun, error)
	ListQuestions(ctx context.Context, runID string) ([]model.Question, error)
	ListResponses(ctx context.Context, questionIDs []string) ([]model.Response, error)
	ListCitations(ctx context.Context, questionIDs []string) ([]model.CitationRow, error)
	ListCompetitors(ctx context.Context, runIDs []string) ([]model.CompetitorRecord, error)
}

// Options tunes snapshot assembly. Zero values fall back to defaults.
type Options struct {
	ChartDays int
	TopN      int
	Location  *time.Location
	Retry     resilience.RetryConfig
	Now       func() time.Time
}

// Service assembles CompetitiveSnapshots from a Repository.
type Service struct {
	repo Repository
	opts Options
}

// NewService creates a Service.
func NewService(repo Repository, opts Options) *Service {
	if opts.ChartDays < 1 {
		opts.ChartDays = DefaultChartDays
	}
	if opts.TopN < 1 {
		opts.TopN = DefaultTopN
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.ReadRetryConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, opts: opts}
}

// Snapshot computes the visibility snapshot for a workspace. Missing
// domain, company or completed runs produce an empty snapshot with a
// guidance message. Citation and competitor read failures are logged and
// degraded to empty sections. Any other read failure wraps ErrRepository.
func (s *Service) Snapshot(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error) {
	start := time.Now()
	snap, err := s.snapshot(ctx, workspaceID)

	status := "error"
	if err == nil {
		status = string(snap.Status)
	}
	metrics.SnapshotTotal.WithLabelValues(status).Inc()
	metrics.SnapshotDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return snap, err
}

func (s *Service) snapshot(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error) {
	log := zap.L().With(zap.String("workspace_id", workspaceID))
	now := s.opts.Now()

	ws, err := read(ctx, s, "get_workspace", func(ctx context.Context) (*model.Workspace, error) {
		return s.repo.GetWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return nil, err
	}
	if ws == nil || ws.Domain == "" {
		return model.EmptySnapshot(workspaceID, model.SnapshotNoDomain, MsgNoDomain, now), nil
	}

	company, err := read(ctx, s, "find_company", func(ctx context.Context) (*model.Company, error) {
		return s.repo.FindCompanyByDomain(ctx, workspaceID, ws.Domain)
	})
	if err != nil {
		return nil, err
	}
	if company == nil {
		return model.EmptySnapshot(workspaceID, model.SnapshotNoCompany, MsgNoCompany, now), nil
	}

	runs, err := read(ctx, s, "list_completed_runs", func(ctx context.Context) ([]model.AssessmentRun, error) {
		return s.repo.ListCompletedRuns(ctx, workspaceID)
	})
	if err != nil {
		return nil, err
	}
	runs = completedOnly(runs)
	latest, ok := model.LatestRun(runs)
	if !ok {
		return model.EmptySnapshot(workspaceID, model.SnapshotNoAssessment, MsgNoAssessment, now), nil
	}

	questions, err := read(ctx, s, "list_questions", func(ctx context.Context) ([]model.Question, error) {
		return s.repo.ListQuestions(ctx, latest.ID)
	})
	if err != nil {
		return nil, err
	}
	qids := model.QuestionIDs(questions)

	var (
		responses   []model.Response
		citations   []model.CitationRow
		competitors []model.CompetitorRecord
		failed      = map[string]error{}
		failedMu    sync.Mutex
	)
	// Degradations are recorded after Wait so a hard failure, which cancels
	// the group, does not report its sibling reads as degraded.
	degrade := func(section string, err error) {
		failedMu.Lock()
		failed[section] = err
		failedMu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rerr error
		responses, rerr = read(gCtx, s, "list_responses", func(ctx context.Context) ([]model.Response, error) {
			return s.repo.ListResponses(ctx, qids)
		})
		return rerr
	})
	g.Go(func() error {
		rows, rerr := read(gCtx, s, "list_citations", func(ctx context.Context) ([]model.CitationRow, error) {
			return s.repo.ListCitations(ctx, qids)
		})
		if rerr != nil {
			degrade(SectionCitations, rerr)
			return nil
		}
		citations = rows
		return nil
	})
	g.Go(func() error {
		recs, rerr := read(gCtx, s, "list_competitors", func(ctx context.Context) ([]model.CompetitorRecord, error) {
			return s.repo.ListCompetitors(ctx, model.RunIDs(runs))
		})
		if rerr != nil {
			degrade(SectionCompetitors, rerr)
			return nil
		}
		competitors = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var warnings []string
	for section, ferr := range failed {
		log.Warn("visibility: secondary read failed, degrading section",
			zap.String("section", section),
			zap.Error(ferr),
		)
		metrics.DegradedSections.WithLabelValues(section).Inc()
		warnings = append(warnings, section)
	}
	slices.Sort(warnings)

	snap := s.assemble(workspaceID, company, runs, latest, questions, responses, citations, competitors, now)
	snap.Warnings = warnings

	log.Debug("visibility: snapshot assembled",
		zap.Int("runs", len(runs)),
		zap.Int("competitors", len(snap.Competitive.Competitors)),
		zap.Int("mentions", snap.Citations.TotalCount),
	)
	return snap, nil
}

// assemble runs the pure pipeline over fully fetched inputs.
func (s *Service) assemble(
	workspaceID string,
	company *model.Company,
	runs []model.AssessmentRun,
	latest model.AssessmentRun,
	questions []model.Question,
	responses []model.Response,
	citations []model.CitationRow,
	competitorRecords []model.CompetitorRecord,
	now time.Time,
) *model.CompetitiveSnapshot {
	snap := model.EmptySnapshot(workspaceID, model.SnapshotOK, "", now)

	aggregated := AggregateCompetitors(competitorRecords)
	cum := ComputeCumulative(runs, aggregated)
	ranking := Rank(*company, cum.UserCumulativeMention, aggregated, s.opts.TopN)
	for _, list := range [][]model.RankedParticipant{ranking.Participants, ranking.Top} {
		for i := range list {
			if list[i].IsSubject {
				list[i].AssessmentCount = cum.TotalAssessments
				list[i].LatestScore = latest.TotalScore
			}
		}
	}

	snap.Score.OverallScore = clamp01(latest.TotalScore / 100)
	snap.Citations = BuildMentionFeed(citations, responses, questions)
	snap.Competitive = model.CompetitiveSection{
		CurrentRank:         ranking.SubjectRank,
		TotalCompetitors:    ranking.Total,
		Competitors:         ranking.Participants,
		Top10Competitors:    ranking.Top,
		Percentile:          ranking.Percentile,
		ShareOfVoice:        cum.ShareOfVoice,
		TotalMarketMentions: cum.TotalMarketMentions,
	}
	snap.Topics = EstimateTopicGaps(TopicSeed(workspaceID), latest.PerRunMentionRate, len(questions))
	snap.ChartData = BuildChart(runs, now, s.opts.Location, s.opts.ChartDays)
	snap.CumulativeData = model.CumulativeData{
		TotalAssessments:       cum.TotalAssessments,
		UserCumulativeMentions: cum.UserCumulativeMention,
		TotalMarketMentions:    cum.TotalMarketMentions,
		CumulativeShareOfVoice: cum.ShareOfVoice,
	}
	return snap
}

// read wraps a repository call with retries and maps failures to
// ErrRepository.
func read[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, error) {
	cfg := s.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(op)
	}
	v, err := resilience.DoVal(ctx, cfg, fn)
	if err != nil {
		var zero T
		return zero, eris.Wrapf(ErrRepository, "%s: %v", op, err)
	}
	return v, nil
}

func completedOnly(runs []model.AssessmentRun) []model.AssessmentRun {
	out := make([]model.AssessmentRun, 0, len(runs))
	for _, r := range runs {
		if r.Completed() {
			out = append(out, r)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
