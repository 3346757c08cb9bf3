package analysis

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/curator/pkg/model"
)

const reasonUnparsable = "could not parse analysis response"

var (
	fenceOpenRe  = regexp.MustCompile("^```[A-Za-z0-9_-]*\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// Default is the result used when nothing usable came back for a group of n
// assets: placeholder label, neutral scores, first member as best.
func Default(n int, reason string) *model.AnalysisResult {
	return &model.AnalysisResult{
		EventName: model.UnknownEventName,
		Scores:    neutralScores(n),
		BestIndex: 0,
		Reason:    reason,
		Fallback:  true,
	}
}

// ParseResponse converts the raw answer for a group of n assets into a
// validated result. It never fails. Missing or invalid fields get their
// defaults, scores are fitted to exactly n entries in [0,100] and the 1-based
// best_index is converted to a clamped 0-based index. Text that holds no JSON
// object yields Default.
func ParseResponse(text string, n int) *model.AnalysisResult {
	fields, ok := decodeObject(stripCodeFence(text))
	if !ok {
		return Default(n, reasonUnparsable)
	}

	return &model.AnalysisResult{
		EventName: parseEventName(fields["event_name"]),
		Scores:    parseScores(fields["scores"], n),
		BestIndex: parseBestIndex(fields["best_index"], n),
		Reason:    parseString(fields["reason"]),
	}
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = fenceOpenRe.ReplaceAllString(text, "")
	text = fenceCloseRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func decodeObject(text string) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err == nil && fields != nil {
		return fields, true
	}

	// Some answers wrap the object in prose; retry on the outermost braces
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	fields = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func parseString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func parseEventName(raw json.RawMessage) string {
	if name := parseString(raw); name != "" {
		return name
	}
	return model.UnknownEventName
}

// parseNumber accepts JSON numbers and numeric strings
func parseNumber(raw json.RawMessage) (float64, bool) {
	if raw == nil || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseScores(raw json.RawMessage, n int) []int {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return neutralScores(n)
	}

	scores := make([]int, 0, n)
	for _, item := range items {
		if len(scores) == n {
			break
		}
		v, ok := parseNumber(item)
		if !ok {
			scores = append(scores, model.NeutralScore)
			continue
		}
		// clamp before converting, huge floats do not fit in int
		scores = append(scores, int(math.Round(math.Max(0, math.Min(v, 100)))))
	}
	for len(scores) < n {
		scores = append(scores, model.NeutralScore)
	}
	return scores
}

func parseBestIndex(raw json.RawMessage, n int) int {
	if n <= 0 {
		return 0
	}
	v, ok := parseNumber(raw)
	if !ok {
		return 0
	}
	v = math.Max(1, math.Min(v, float64(n)))
	return clamp(int(math.Round(v))-1, 0, n-1)
}

func neutralScores(n int) []int {
	scores := make([]int, n)
	for i := range scores {
		scores[i] = model.NeutralScore
	}
	return scores
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
