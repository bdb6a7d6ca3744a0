package compress

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func makeRecords(n int, descriptionLen int) []Record {
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, Record{
			"name":        fmt.Sprintf("project-%d", i),
			"status":      "in_progress",
			"description": strings.Repeat("x", descriptionLen),
		})
	}
	return records
}

func TestCompressEmptyInput(t *testing.T) {
	c := New(DefaultOptions())
	out := c.Compress(nil, 12000)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestCompressDeterminism(t *testing.T) {
	c := New(DefaultOptions())
	records := makeRecords(10, 1000)

	first := c.Compress(records, 500)
	second := c.Compress(makeRecords(10, 1000), 500)

	firstRaw, err := json.Marshal(first)
	require.NoError(t, err)
	secondRaw, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, firstRaw, secondRaw)
}

func TestCompressStructuralPruning(t *testing.T) {
	c := New(DefaultOptions())
	records := []Record{
		{
			"name":       "alpha",
			"created_at": "2026-01-01",
			"avatar_url": "https://example.com/a.png",
			"_internal":  "hidden",
			"_metadata":  map[string]any{"kept": true},
			"empty":      []any{},
		},
	}

	out := c.Compress(records, 12000)
	require.Len(t, out, 1)
	require.Contains(t, out[0], "name")
	require.Contains(t, out[0], "_metadata")
	require.NotContains(t, out[0], "created_at")
	require.NotContains(t, out[0], "avatar_url")
	require.NotContains(t, out[0], "_internal")
	require.NotContains(t, out[0], "empty")
}

func TestCompressDepthCollapse(t *testing.T) {
	c := New(DefaultOptions())
	deep := map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": map[string]any{"e": map[string]any{"f": "too deep"}}}}}}
	records := []Record{{"name": "alpha", "tree": deep}}

	out := c.Compress(records, 12000)
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	require.Contains(t, string(raw), nestedMarker)
	require.NotContains(t, string(raw), "too deep")
}

func TestCompressArrayCapMarker(t *testing.T) {
	c := New(DefaultOptions())
	items := make([]any, 0, 25)
	for i := 0; i < 25; i++ {
		items = append(items, map[string]any{"n": i})
	}
	records := []Record{{"name": "alpha", "milestones": items}}

	out := c.Compress(records, 12000)
	capped, ok := out[0]["milestones"].([]any)
	require.True(t, ok)
	require.Len(t, capped, 11)
	require.Equal(t, "+15 more items", capped[10])
}

func TestCompressOversizedInput(t *testing.T) {
	c := New(DefaultOptions())
	records := makeRecords(50, 5000)

	out := c.Compress(records, 12000)
	require.LessOrEqual(t, EstimateTokens(out), 12000)
	require.GreaterOrEqual(t, len(out), 3)
	for _, rec := range out {
		desc, ok := rec["description"].(string)
		require.True(t, ok)
		require.LessOrEqual(t, len(desc), 203) // limit plus ellipsis
	}
}

func TestCompressRecordFloor(t *testing.T) {
	c := New(DefaultOptions())
	records := makeRecords(10, 2000)

	out := c.Compress(records, 10)
	require.Len(t, out, 3)
}

func TestCompressSingleRecordOverBudget(t *testing.T) {
	c := New(DefaultOptions())
	records := makeRecords(1, 5000)

	out := c.Compress(records, 1)
	require.Len(t, out, 1)
}

func TestCompressDedupReferences(t *testing.T) {
	c := New(DefaultOptions())
	shared := map[string]any{"moods": []any{"sunny", "cloudy", "stormy"}}
	records := []Record{
		{"name": "alpha", "reference_data": shared, "description": strings.Repeat("a", 1000)},
		{"name": "beta", "reference_data": shared, "description": strings.Repeat("b", 1000)},
		{"name": "gamma", "reference_data": map[string]any{"moods": []any{"other"}}, "description": strings.Repeat("c", 1000)},
	}

	// Tight budget so the dedup stage actually runs.
	out := c.Compress(records, 150)
	require.Contains(t, out[0], "reference_data")
	require.NotContains(t, out[1], "reference_data")
	require.Contains(t, out[2], "reference_data")
}

func TestEstimateTokensCeil(t *testing.T) {
	// "ab" serializes to 4 bytes, "abc" to 5.
	require.Equal(t, 1, EstimateTokens("ab"))
	require.Equal(t, 2, EstimateTokens("abc"))
}

func TestTruncationKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 400)

	cut := truncateText(long, 200)
	require.True(t, utf8.ValidString(cut))
	require.Equal(t, 203, utf8.RuneCountInString(cut))

	out := ApplyLongTextStrategy([]Record{{"notes": long}}, StrategyEllipsis)
	s, ok := out[0]["notes"].(string)
	require.True(t, ok)
	require.True(t, utf8.ValidString(s))
	require.Equal(t, 103, utf8.RuneCountInString(s))
}

func TestApplyLongTextStrategy(t *testing.T) {
	long := strings.Repeat("x", 400)
	records := []Record{{"description": long}}

	out := ApplyLongTextStrategy(records, StrategyEllipsis)
	require.Equal(t, strings.Repeat("x", 100)+"...", out[0]["description"])

	out = ApplyLongTextStrategy(records, StrategyOmit)
	require.Equal(t, "[long text omitted]", out[0]["description"])

	out = ApplyLongTextStrategy(records, StrategySummarize)
	require.Equal(t, strings.Repeat("x", 300)+" [to be summarized]", out[0]["description"])

	out = ApplyLongTextStrategy(records, "")
	require.Equal(t, strings.Repeat("x", 200)+"...", out[0]["description"])
}
