// Package fixture loads assessment history from YAML and writes it to a
// store. It is the ingestion path for data produced outside this service.
package fixture

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/splitlabs/max-visibility/internal/model"
)

// Fixture is one workspace's history.
type Fixture struct {
	Workspace model.Workspace `yaml:"workspace"`
	Company   *model.Company  `yaml:"company"`
	Runs      []Run           `yaml:"runs"`
}

// Run is an assessment run with its children.
type Run struct {
	model.AssessmentRun `yaml:",inline"`
	Questions           []Question               `yaml:"questions"`
	Competitors         []model.CompetitorRecord `yaml:"competitors"`
}

// Question is a question with its responses.
type Question struct {
	model.Question `yaml:",inline"`
	Responses      []Response `yaml:"responses"`
}

// Response is a response with its citations.
type Response struct {
	model.Response `yaml:",inline"`
	Citations      []model.Citation `yaml:"citations"`
}

// Summary counts the rows written by Apply. Runs counts every run sent to
// the store; child rows that already existed are not counted.
type Summary struct {
	Runs        int   `json:"runs"`
	Questions   int64 `json:"questions"`
	Responses   int64 `json:"responses"`
	Citations   int64 `json:"citations"`
	Competitors int64 `json:"competitors"`
}

// Writer is the store surface Apply needs.
type Writer interface {
	CreateWorkspace(ctx context.Context, ws model.Workspace) error
	CreateCompany(ctx context.Context, c model.Company) error
	CreateRun(ctx context.Context, run model.AssessmentRun) (*model.AssessmentRun, error)
	AddQuestions(ctx context.Context, questions []model.Question) (int64, error)
	AddResponses(ctx context.Context, responses []model.Response) (int64, error)
	AddCitations(ctx context.Context, citations []model.Citation) (int64, error)
	AddCompetitors(ctx context.Context, competitors []model.CompetitorRecord) (int64, error)
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a fixture and checks it. Unknown keys are rejected.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, eris.Wrap(err, "fixture: parse")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the fields Normalize cannot fill in.
func (f *Fixture) Validate() error {
	if f.Workspace.ID == "" {
		return eris.New("fixture: workspace.id is required")
	}
	if f.Company != nil && f.Company.Name == "" {
		return eris.New("fixture: company.name is required")
	}
	for i, r := range f.Runs {
		if r.Status != "" && !r.Status.Valid() {
			return eris.Errorf("fixture: run %d: unknown status %q", i, r.Status)
		}
		if r.PerRunMentionRate < 0 || r.PerRunMentionRate > 1 {
			return eris.Errorf("fixture: run %d: mention_rate %v outside [0,1]", i, r.PerRunMentionRate)
		}
		for j, c := range r.Competitors {
			if c.Name == "" {
				return eris.Errorf("fixture: run %d competitor %d: name is required", i, j)
			}
			if c.PerRunMentionRate < 0 || c.PerRunMentionRate > 1 {
				return eris.Errorf("fixture: run %d competitor %q: mention_rate %v outside [0,1]", i, c.Name, c.PerRunMentionRate)
			}
		}
	}
	return nil
}

// Normalize assigns missing IDs, links children to their parents and fills
// timestamps. Runs without a status are completed; runs without created_at
// get now; children inherit their parent's timestamp.
func (f *Fixture) Normalize(now time.Time) {
	if f.Company != nil {
		f.Company.ID = orNewID(f.Company.ID)
		if f.Company.WorkspaceID == "" {
			f.Company.WorkspaceID = f.Workspace.ID
		}
		if f.Company.Domain == "" {
			f.Company.Domain = f.Workspace.Domain
		}
	}

	for i := range f.Runs {
		r := &f.Runs[i]
		r.ID = orNewID(r.ID)
		r.WorkspaceID = f.Workspace.ID
		if r.CompanyID == "" && f.Company != nil {
			r.CompanyID = f.Company.ID
		}
		if r.Status == "" {
			r.Status = model.RunStatusCompleted
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.CreatedAt = r.CreatedAt.UTC()

		for j := range r.Questions {
			q := &r.Questions[j]
			q.ID = orNewID(q.ID)
			q.RunID = r.ID
			q.CreatedAt = orTime(q.CreatedAt, r.CreatedAt)

			for k := range q.Responses {
				resp := &q.Responses[k]
				resp.ID = orNewID(resp.ID)
				resp.QuestionID = q.ID
				resp.CreatedAt = orTime(resp.CreatedAt, q.CreatedAt)

				for m := range resp.Citations {
					c := &resp.Citations[m]
					c.ID = orNewID(c.ID)
					c.ResponseID = resp.ID
					c.CreatedAt = orTime(c.CreatedAt, resp.CreatedAt)
					if c.Domain == "" && c.URL != "" {
						c.Domain = model.NormalizeDomain(c.URL)
					}
					if c.PositionInCitations == 0 {
						c.PositionInCitations = m + 1
					}
				}
			}
		}
		for j := range r.Competitors {
			c := &r.Competitors[j]
			c.ID = orNewID(c.ID)
			c.RunID = r.ID
		}
	}
}

// Apply writes a normalized fixture parents first. Re-applying the same
// fixture inserts nothing new.
func (f *Fixture) Apply(ctx context.Context, w Writer) (Summary, error) {
	var sum Summary

	if err := w.CreateWorkspace(ctx, f.Workspace); err != nil {
		return sum, eris.Wrap(err, "fixture: write workspace")
	}
	if f.Company != nil {
		if err := w.CreateCompany(ctx, *f.Company); err != nil {
			return sum, eris.Wrap(err, "fixture: write company")
		}
	}

	var (
		questions   []model.Question
		responses   []model.Response
		citations   []model.Citation
		competitors []model.CompetitorRecord
	)
	for _, r := range f.Runs {
		if _, err := w.CreateRun(ctx, r.AssessmentRun); err != nil {
			return sum, eris.Wrapf(err, "fixture: write run %s", r.ID)
		}
		sum.Runs++
		for _, q := range r.Questions {
			questions = append(questions, q.Question)
			for _, resp := range q.Responses {
				responses = append(responses, resp.Response)
				citations = append(citations, resp.Citations...)
			}
		}
		competitors = append(competitors, r.Competitors...)
	}

	var err error
	if sum.Questions, err = w.AddQuestions(ctx, questions); err != nil {
		return sum, eris.Wrap(err, "fixture: write questions")
	}
	if sum.Responses, err = w.AddResponses(ctx, responses); err != nil {
		return sum, eris.Wrap(err, "fixture: write responses")
	}
	if sum.Citations, err = w.AddCitations(ctx, citations); err != nil {
		return sum, eris.Wrap(err, "fixture: write citations")
	}
	if sum.Competitors, err = w.AddCompetitors(ctx, competitors); err != nil {
		return sum, eris.Wrap(err, "fixture: write competitors")
	}
	return sum, nil
}

func orNewID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.UTC()
}
