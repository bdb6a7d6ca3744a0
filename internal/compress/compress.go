// Package compress shrinks structured project records until their serialized
// form fits a token budget. The pipeline is deterministic and total: the same
// input always produces the same output, and even hopelessly oversized input
// yields a minimal valid record set instead of an error.
package compress

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/pkg/metrics"
)

// Record is one structured project record as decoded from JSON.
type Record = map[string]any

// Options holds the tunables of the compression pipeline.
type Options struct {
	LongTextLimit      int // pass 1 limit for known long-text fields
	EscalatedTextLimit int // pass 2 limit once over budget
	HardTextLimit      int // cap for any other string
	TopArrayCap        int // max items for arrays at record level
	NestedArrayCap     int // max items for arrays below record level
	MaxDepth           int // nesting beyond this collapses to a marker
	RecordFloor        int // never drop below this many records
	RecordSafetyCap    int // last-resort record count when still far over
}

func DefaultOptions() Options {
	return Options{
		LongTextLimit:      200,
		EscalatedTextLimit: 30,
		HardTextLimit:      500,
		TopArrayCap:        50,
		NestedArrayCap:     10,
		MaxDepth:           5,
		RecordFloor:        3,
		RecordSafetyCap:    4,
	}
}

// fieldDenylist lists bookkeeping fields that carry no value for report
// generation and are stripped at every depth.
var fieldDenylist = map[string]struct{}{}

func init() {
	for _, f := range []string{
		"created_at", "updated_at", "created_by", "modified_at", "modified_by",
		"uuid", "workspace", "workspace_id", "organization", "organization_id",
		"avatar", "avatar_url", "picture", "picture_url", "image", "image_url",
		"slug", "url", "external_id", "external_url", "api_url",
		"permissions", "can_edit", "can_delete", "can_view",
		"is_active", "is_archived", "is_deleted", "is_template",
		"sort_order", "position", "order", "rank",
		"id", "type", "locale", "timezone", "language",
		"metadata", "settings", "config", "options", "preferences",
		"tags", "labels", "categories", "classification",
		"history", "logs", "audit", "versions", "revisions",
		"attachments", "files", "documents", "media",
		"links", "references", "related", "associations",
		"custom_fields", "extra", "additional", "misc",
	} {
		fieldDenylist[f] = struct{}{}
	}
}

// longTextFields are the fields eligible for aggressive truncation.
var longTextFields = map[string]struct{}{
	"description": {},
	"content":     {},
	"body":        {},
	"notes":       {},
	"comment":     {},
	"summary":     {},
	"details":     {},
	"text":        {},
}

// referenceKeys name shared lookup blocks that tend to repeat verbatim across
// records and are deduplicated in stage 3.
var referenceKeys = []string{"reference_data"}

const nestedMarker = "[nested]"

type Compressor struct {
	opts Options
	log  *zap.SugaredLogger
}

func New(opts Options) *Compressor {
	return &Compressor{
		opts: opts,
		log:  zap.S().Named("compress"),
	}
}

// EstimateTokens approximates the token cost of a value as
// ceil(serializedBytes / 4).
func EstimateTokens(v any) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return (len(raw) + 3) / 4
}

// Compress runs the staged pipeline until the record set fits budgetTokens.
// Each stage re-measures the estimate and the pipeline short-circuits as soon
// as the budget is met. Order matters: structural pruning runs before
// truncation so character limits apply to already-shrunk data, and dropping
// whole records is the last resort.
func (c *Compressor) Compress(records []Record, budgetTokens int) []Record {
	if len(records) == 0 {
		return []Record{}
	}

	// Stage 1: structural pruning.
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		pruned, _ := c.pruneValue(rec, 0).(Record)
		if pruned == nil {
			pruned = Record{}
		}
		out = append(out, pruned)
	}
	if EstimateTokens(out) <= budgetTokens {
		return out
	}

	// Stage 2: long text truncation.
	out = c.truncateAll(out, c.opts.LongTextLimit)
	if EstimateTokens(out) <= budgetTokens {
		return out
	}

	// Stage 3: deduplicate shared reference blocks.
	out = c.dedupReferences(out)
	if EstimateTokens(out) <= budgetTokens {
		return out
	}

	// Stage 4: escalated truncation.
	out = c.truncateAll(out, c.opts.EscalatedTextLimit)
	estimate := EstimateTokens(out)
	if estimate <= budgetTokens {
		return out
	}

	// Stage 5: drop trailing records proportionally to the overshoot,
	// never below the floor.
	ratio := float64(budgetTokens) / float64(estimate)
	maxRecords := int(ratio * float64(len(out)))
	if maxRecords < c.opts.RecordFloor {
		maxRecords = c.opts.RecordFloor
	}
	if maxRecords < len(out) {
		out = out[:maxRecords]
		estimate = EstimateTokens(out)
		c.log.Warnw("record drop engaged", "kept", maxRecords, "estimate", estimate, "budget", budgetTokens)
	}

	// Safety net: still far over budget means the surviving records are
	// individually heavy, keep only a handful.
	if estimate > budgetTokens+budgetTokens/4 && len(out) > c.opts.RecordSafetyCap {
		out = out[:c.opts.RecordSafetyCap]
		metrics.IncreaseCompressorSafetyCapMetric()
		c.log.Warnw("safety cap engaged", "kept", len(out), "estimate", EstimateTokens(out), "budget", budgetTokens)
	}

	return out
}

func (c *Compressor) pruneValue(v any, depth int) any {
	if depth > c.opts.MaxDepth {
		return nestedMarker
	}

	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		maxItems := c.opts.NestedArrayCap
		if depth == 0 {
			maxItems = c.opts.TopArrayCap
		}
		limited := val
		dropped := 0
		if len(val) > maxItems {
			limited = val[:maxItems]
			dropped = len(val) - maxItems
		}
		out := make([]any, 0, len(limited)+1)
		for _, item := range limited {
			out = append(out, c.pruneValue(item, depth+1))
		}
		if dropped > 0 {
			out = append(out, fmt.Sprintf("+%d more items", dropped))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, value := range val {
			if _, denied := fieldDenylist[key]; denied {
				continue
			}
			if len(key) > 0 && key[0] == '_' && key != "_metadata" {
				continue
			}
			if inner, ok := value.([]any); ok && len(inner) == 0 {
				continue
			}
			if inner, ok := value.(map[string]any); ok && len(inner) == 0 {
				continue
			}
			out[key] = c.pruneValue(value, depth+1)
		}
		return out
	default:
		return v
	}
}

func (c *Compressor) truncateAll(records []Record, limit int) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		truncated, _ := c.truncateValue(rec, "", limit).(Record)
		out = append(out, truncated)
	}
	return out
}

func (c *Compressor) truncateValue(v any, key string, limit int) any {
	switch val := v.(type) {
	case string:
		if _, long := longTextFields[key]; long {
			return truncateText(val, limit)
		}
		return truncateText(val, c.opts.HardTextLimit)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, c.truncateValue(item, key, limit))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, value := range val {
			out[k] = c.truncateValue(value, k, limit)
		}
		return out
	default:
		return v
	}
}

// dedupReferences keeps a shared reference block only on the first record
// that carries it. Equality is exact serialized equality, not similarity.
func (c *Compressor) dedupReferences(records []Record) []Record {
	seen := map[string]map[string]struct{}{}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		copied := make(Record, len(rec))
		for k, v := range rec {
			copied[k] = v
		}
		for _, refKey := range referenceKeys {
			value, ok := copied[refKey]
			if !ok {
				continue
			}
			raw, err := json.Marshal(value)
			if err != nil {
				continue
			}
			if seen[refKey] == nil {
				seen[refKey] = map[string]struct{}{}
			}
			if _, dup := seen[refKey][string(raw)]; dup {
				delete(copied, refKey)
				continue
			}
			seen[refKey][string(raw)] = struct{}{}
		}
		out = append(out, copied)
	}
	return out
}

// truncateText cuts on rune boundaries so multi-byte characters survive the
// cut intact.
func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
