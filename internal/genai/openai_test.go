package genai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	require.Equal(t, "plain", stripCodeFences("plain"))
	require.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, "<html></html>", stripCodeFences("```html\n<html></html>\n```"))
}

func TestParseEvaluation(t *testing.T) {
	eval := parseEvaluation(`{"score": 82, "recommendation": "pass", "issues": []}`)
	require.NotNil(t, eval)
	require.Equal(t, 82, eval.Score)
	require.Equal(t, RecommendationPass, eval.Recommendation)
}

func TestParseEvaluationFenced(t *testing.T) {
	eval := parseEvaluation("```json\n{\"score\": 40, \"recommendation\": \"regenerate\"}\n```")
	require.NotNil(t, eval)
	require.Equal(t, 40, eval.Score)
	require.Equal(t, RecommendationRegenerate, eval.Recommendation)
}

func TestParseEvaluationEmbeddedJSON(t *testing.T) {
	content := "Here is my analysis of the report.\n\n{\"score\": 55, \"recommendation\": \"regenerate\", \"issues\": [\"empty sections\"]}"
	eval := parseEvaluation(content)
	require.NotNil(t, eval)
	require.Equal(t, 55, eval.Score)
	require.Equal(t, []string{"empty sections"}, eval.Issues)
}

func TestParseEvaluationGarbage(t *testing.T) {
	require.Nil(t, parseEvaluation("the report looks fine to me"))
}

func TestFallbackEvaluationPasses(t *testing.T) {
	eval := fallbackEvaluation(7)
	require.Equal(t, 70, eval.Score)
	require.Equal(t, RecommendationPass, eval.Recommendation)
	require.Equal(t, 7, eval.ProjectsFound)
	require.Equal(t, 7, eval.ProjectsExpected)
	require.NotEmpty(t, eval.Issues)
}

func TestBuildGenerationPromptIncludesFeedback(t *testing.T) {
	prompt := BuildGenerationPrompt(GenerateRequest{
		Mapping:  map[string]any{"title": "project.name"},
		Records:  []map[string]any{{"name": "alpha"}},
		Feedback: []string{"missing budget table"},
	})
	require.True(t, strings.Contains(prompt, "missing budget table"))
	require.True(t, strings.Contains(prompt, "project.name"))
	require.True(t, strings.Contains(prompt, "alpha"))
}
