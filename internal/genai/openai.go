package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
)

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*"score".*\}`)

// Client talks to an OpenAI compatible endpoint for both report generation
// and report evaluation.
type Client struct {
	api             *openai.Client
	generationModel string
	evaluationModel string
	requestTimeout  time.Duration
	log             *zap.SugaredLogger
}

// Make sure we conform to both collaborator interfaces
var (
	_ Generator = (*Client)(nil)
	_ Evaluator = (*Client)(nil)
)

func NewClient(cfg *config.Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.AI.APIKey)
	if cfg.AI.BaseURL != "" {
		clientConfig.BaseURL = cfg.AI.BaseURL
	}

	return &Client{
		api:             openai.NewClientWithConfig(clientConfig),
		generationModel: cfg.AI.GenerationModel,
		evaluationModel: cfg.AI.EvaluationModel,
		requestTimeout:  cfg.AI.RequestTimeout,
		log:             zap.S().Named("genai"),
	}
}

// Generate produces one report artifact. Failures are classified into
// UpstreamError kinds so the job runner can record a meaningful terminal
// error.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	prompt := BuildGenerationPrompt(req)
	c.log.Infow("calling generation model", "model", c.generationModel, "records", len(req.Records))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.generationModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewUpstreamError(UpstreamMalformedOutput, errors.New("empty completion"))
	}

	content := stripCodeFences(resp.Choices[0].Message.Content)
	if strings.TrimSpace(content) == "" {
		return nil, NewUpstreamError(UpstreamMalformedOutput, errors.New("blank report content"))
	}

	format := req.Format
	if format == "" {
		format = "html"
	}

	return &Artifact{Content: []byte(content), Format: format}, nil
}

// Evaluate scores an artifact. An unparseable model response does not fail
// the evaluation: it degrades to a passing fallback verdict so a flaky
// reviewer never blocks report delivery.
func (c *Client) Evaluate(ctx context.Context, artifact *Artifact, projectCount int) (*Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.evaluationModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: evaluationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildEvaluationUserPrompt(projectCount) + "\n\n## Report\n" + string(artifact.Content)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return fallbackEvaluation(projectCount), nil
	}

	eval := parseEvaluation(resp.Choices[0].Message.Content)
	if eval == nil {
		c.log.Warnw("could not parse evaluation response, using fallback", "model", c.evaluationModel)
		eval = fallbackEvaluation(projectCount)
	}

	return eval, nil
}

func parseEvaluation(content string) *Evaluation {
	cleaned := stripCodeFences(content)

	var eval Evaluation
	if err := json.Unmarshal([]byte(cleaned), &eval); err == nil {
		return &eval
	}

	if match := jsonObjectRe.FindString(cleaned); match != "" {
		if err := json.Unmarshal([]byte(match), &eval); err == nil {
			return &eval
		}
	}

	return nil
}

func fallbackEvaluation(projectCount int) *Evaluation {
	return &Evaluation{
		Score:            70,
		Completeness:     28,
		Accuracy:         28,
		Formatting:       14,
		ProjectsFound:    projectCount,
		ProjectsExpected: projectCount,
		Issues:           []string{"Could not parse evaluation response"},
		AccuracyIssues:   []string{},
		EmptyFields:      []string{},
		Recommendation:   RecommendationPass,
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return NewUpstreamError(UpstreamRateLimited, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return NewUpstreamError(UpstreamUnavailable, err)
		default:
			return NewUpstreamError(UpstreamMalformedOutput, fmt.Errorf("model call rejected: %w", err))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamError(UpstreamTimeout, err)
	}
	return NewUpstreamError(UpstreamUnavailable, err)
}
