package compress

// Long text strategies selectable by the caller. They run as a pre-pass
// before the budget pipeline and shape how the generated report should treat
// verbose fields.
const (
	StrategySummarize = "summarize"
	StrategyEllipsis  = "ellipsis"
	StrategyOmit      = "omit"
)

// ApplyLongTextStrategy rewrites long string values according to the chosen
// strategy. An unknown or empty strategy falls back to a plain 200 character
// cut.
func ApplyLongTextStrategy(records []Record, strategy string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		processed, _ := applyStrategyValue(rec, strategy, 0).(Record)
		out = append(out, processed)
	}
	return out
}

func applyStrategyValue(v any, strategy string, depth int) any {
	if depth > 5 {
		return v
	}

	switch val := v.(type) {
	case string:
		runes := []rune(val)
		if len(runes) <= 100 {
			return val
		}
		switch strategy {
		case StrategySummarize:
			if len(runes) > 300 {
				return string(runes[:300]) + " [to be summarized]"
			}
			return val
		case StrategyEllipsis:
			return string(runes[:100]) + "..."
		case StrategyOmit:
			if len(runes) > 200 {
				return "[long text omitted]"
			}
			return val
		default:
			if len(runes) > 200 {
				return string(runes[:200]) + "..."
			}
			return val
		}
	case []any:
		limited := val
		if len(limited) > 20 {
			limited = limited[:20]
		}
		out := make([]any, 0, len(limited))
		for _, item := range limited {
			out = append(out, applyStrategyValue(item, strategy, depth+1))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, value := range val {
			out[key] = applyStrategyValue(value, strategy, depth+1)
		}
		return out
	default:
		return v
	}
}

// StrategyInstruction renders the strategy as a prompt instruction for the
// report generator.
func StrategyInstruction(strategy string) string {
	switch strategy {
	case StrategySummarize:
		return "Summarize long texts to a maximum of 2 sentences"
	case StrategyEllipsis:
		return `Truncate long texts with "..." after 100 characters`
	case StrategyOmit:
		return "Omit fields with very long texts"
	default:
		return "Keep texts at reasonable length for slides"
	}
}
