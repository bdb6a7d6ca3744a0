package genai

import (
	"context"
	"fmt"
)

// GenerateRequest carries everything needed to produce one report artifact.
type GenerateRequest struct {
	Mapping          map[string]any
	Records          []map[string]any
	LongTextStrategy string
	Format           string
	Feedback         []string // issues from a prior evaluation, empty on first pass
}

// Artifact is a generated report document.
type Artifact struct {
	Content []byte
	Format  string
}

// Evaluation is the structured verdict returned by the reviewer model.
type Evaluation struct {
	Score            int      `json:"score"`
	Completeness     int      `json:"completeness"`
	Accuracy         int      `json:"accuracy"`
	Formatting       int      `json:"formatting"`
	ProjectsFound    int      `json:"projectsFound"`
	ProjectsExpected int      `json:"projectsExpected"`
	Issues           []string `json:"issues"`
	AccuracyIssues   []string `json:"accuracyIssues"`
	EmptyFields      []string `json:"emptyFields"`
	Recommendation   string   `json:"recommendation"`
}

// Recommendation values.
const (
	RecommendationPass       = "pass"
	RecommendationRegenerate = "regenerate"
)

// Generator produces a report artifact from compressed project data.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Artifact, error)
}

// Evaluator reviews a generated artifact and scores its quality.
type Evaluator interface {
	Evaluate(ctx context.Context, artifact *Artifact, projectCount int) (*Evaluation, error)
}

// Upstream failure kinds.
type UpstreamKind string

const (
	UpstreamRateLimited     UpstreamKind = "rate_limited"
	UpstreamMalformedOutput UpstreamKind = "malformed_output"
	UpstreamTimeout         UpstreamKind = "timeout"
	UpstreamUnavailable     UpstreamKind = "unavailable"
)

// UpstreamError wraps a failure of the external model call with a coarse
// classification the runner can act on.
type UpstreamError struct {
	Kind UpstreamKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func NewUpstreamError(kind UpstreamKind, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Err: err}
}
