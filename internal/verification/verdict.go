// FilePath: internal/verification/verdict.go
package verification

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/hydrozen/leakwatch/internal/models"
)

// Heuristic fallback values
const (
	FallbackConfidence     = 0.5
	FallbackDescriptionLen = 200
)

var leakKeywords = []string{"leak", "drip", "puddle", "wet"}

// ParseVerdict turns the raw text of the verdict collaborator into a Verdict.
//
// A well-formed payload is a JSON object (optionally inside a code fence)
// with a boolean isLeakage, a numeric confidence in [0, 1] and a string
// description. Anything else is scored with the keyword heuristic and marked
// Degraded.
func ParseVerdict(text string) models.Verdict {
	if v, ok := parseStrict(text); ok {
		return v
	}
	return fallbackVerdict(text)
}

func parseStrict(text string) (models.Verdict, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil || raw == nil {
		return models.Verdict{}, false
	}

	leakField, ok := raw["isLeakage"]
	if !ok {
		// the model sometimes misspells the key
		leakField, ok = raw["isLeagake"]
	}
	if !ok {
		return models.Verdict{}, false
	}

	var v models.Verdict
	if !decodeField(leakField, &v.IsLeakage) {
		return models.Verdict{}, false
	}
	if !decodeField(raw["confidence"], &v.Confidence) || v.Confidence < 0 || v.Confidence > 1 {
		return models.Verdict{}, false
	}
	if !decodeField(raw["description"], &v.Description) {
		return models.Verdict{}, false
	}
	return v, true
}

// decodeField decodes a present, non-null field into dst with strict typing.
func decodeField(field json.RawMessage, dst any) bool {
	if len(field) == 0 || string(field) == "null" {
		return false
	}
	return json.Unmarshal(field, dst) == nil
}

func fallbackVerdict(text string) models.Verdict {
	lower := strings.ToLower(text)
	isLeak := false
	if strings.Contains(lower, "water") {
		for _, kw := range leakKeywords {
			if strings.Contains(lower, kw) {
				isLeak = true
				break
			}
		}
	}
	return models.Verdict{
		IsLeakage:   isLeak,
		Confidence:  FallbackConfidence,
		Description: truncate(text, FallbackDescriptionLen),
		Degraded:    true,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func cleanJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		start := strings.Index(response, "```json")
		if start == -1 {
			start = strings.Index(response, "```")
		}
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			response = response[start+nl+1:]
		}
		if end := strings.LastIndex(response, "```"); end != -1 {
			response = response[:end]
		}
	}
	response = strings.TrimSpace(response)

	if !strings.HasPrefix(response, "{") {
		if idx := strings.Index(response, "{"); idx != -1 {
			response = response[idx:]
		}
	}
	if !strings.HasSuffix(response, "}") {
		if idx := strings.LastIndex(response, "}"); idx != -1 {
			response = response[:idx+1]
		}
	}
	return strings.TrimSpace(response)
}
