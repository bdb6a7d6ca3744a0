package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/compress"
)

const evaluationSystemPrompt = `You are an expert at evaluating portfolio report documents for quality and completeness.

Analyze the provided report and evaluate its quality.

## Scoring Criteria (Total: 100 points)

### Content Structure (0-40 points) - return as "completeness" field
- The report has a clear structure with multiple sections
- Each project/section has identifiable content
- Information is organized logically
- No placeholder text like "[PLACEHOLDER]", "TBD", "N/A" repeated excessively

### Data Quality (0-40 points) - return as "accuracy" field
- Content appears to be real data (not lorem ipsum or fake text)
- Numbers, dates, and names look realistic
- No obvious signs of hallucinated or fabricated content
- Fields are populated with meaningful information

### Formatting (0-20 points) - return as "formatting" field
- Professional layout
- Consistent styling across sections
- Readable text (not cut off or overlapping)
- Clear visual hierarchy

## Output Requirements
- score: Total score (0-100), should equal completeness + accuracy + formatting
- completeness: Score for content structure (0-40)
- accuracy: Score for data quality (0-40)
- formatting: Score for visual formatting (0-20)
- projectsFound: Number of distinct projects found in the report
- projectsExpected: Use the number provided in the user message
- issues: Array of general issues found
- accuracyIssues: Array of data accuracy issues
- emptyFields: Array of fields that appear empty or have placeholder values
- recommendation: "pass" if score >= 65, otherwise "regenerate"

Return your evaluation as JSON.`

// BuildGenerationPrompt renders the model prompt for one report generation
// call from the field mapping and the already compressed project data.
func BuildGenerationPrompt(req GenerateRequest) string {
	dataJSON, _ := json.MarshalIndent(req.Records, "", "  ")
	mappingJSON, _ := json.MarshalIndent(req.Mapping, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, `Generate an HTML report document for the project portfolio with the following data:

## Project Data
%s

## Field Mapping
%s

## Long Text Strategy
%s

## Required Structure
1. Summary section with a list of all projects and their status/mood
2. For each project: sections according to the mapping (Card, Progress, Planning)
3. Final section listing fields that could not be populated

## Design Guidelines
- Use a professional, clean design
- Use consistent colors for status indicators:
  - Green: completed/sunny/low risk
  - Yellow: in progress/cloudy/medium risk
  - Red: delayed/stormy/high risk
- Include project names clearly in each section
- Use tables for budget and effort data
- Use timelines or Gantt-style visuals for milestones
`, dataJSON, mappingJSON, compress.StrategyInstruction(req.LongTextStrategy))

	if len(req.Feedback) > 0 {
		b.WriteString("\n## Issues Found in the Previous Version (FIX ALL OF THEM)\n")
		for _, issue := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	b.WriteString("\nReturn ONLY the complete HTML document, starting with <!DOCTYPE html>. Do not wrap it in markdown fences.")
	return b.String()
}

func buildEvaluationUserPrompt(projectCount int) string {
	return fmt.Sprintf(`Analyze this report and evaluate its quality. It should contain approximately %d projects. Return your evaluation as JSON with these exact fields: score, completeness, accuracy, formatting, projectsFound, projectsExpected, issues (array), accuracyIssues (array), emptyFields (array), recommendation ("pass" or "regenerate").`, projectCount)
}
