package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/doculedger/doculedger/internal/domain"
)

// parseModelOutput turns the model's raw text into a ModelOutput. It first
// attempts a strict parse; if that fails it runs one bounded recovery pass
// (strip code fences and surrounding prose, isolate the JSON payload) and
// re-parses. Anything still unparseable fails with *domain.AIExtractionError,
// never with silently corrupted data.
func parseModelOutput(raw string) (*ModelOutput, error) {
	if out, err := decodeModelOutput(raw); err == nil {
		return out, nil
	}

	recovered, ok := recoverJSON(raw)
	if !ok {
		return nil, &domain.AIExtractionError{Reason: "model output contains no JSON payload"}
	}
	out, err := decodeModelOutput(recovered)
	if err != nil {
		return nil, &domain.AIExtractionError{Reason: "model output unparseable after recovery", Err: err}
	}
	return out, nil
}

func decodeModelOutput(s string) (*ModelOutput, error) {
	s = strings.TrimSpace(s)

	// Some models return a bare transaction array instead of the envelope.
	if strings.HasPrefix(s, "[") {
		var txs []map[string]any
		if err := json.Unmarshal([]byte(s), &txs); err != nil {
			return nil, err
		}
		return &ModelOutput{Transactions: txs}, nil
	}

	var out ModelOutput
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// recoverJSON isolates a JSON object or array inside text that may wrap it
// in Markdown fences or explanatory prose. It reports false when no
// plausible JSON payload exists.
func recoverJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers: drop the fence line,
	// then everything after the closing fence.
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if nl := strings.Index(s, "\n"); nl != -1 && strings.HasPrefix(strings.ToLower(strings.TrimSpace(s[:nl])), "json") {
			s = s[nl+1:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	// Keep only the outermost JSON value: from the first opener to the last
	// matching closer.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start, closer := objStart, "}"
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start == -1 {
		return "", false
	}

	end := strings.LastIndex(s, closer)
	if end <= start {
		return "", false
	}
	return strings.TrimSpace(s[start : end+1]), true
}
