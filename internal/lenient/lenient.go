// Package lenient recovers structured JSON values from free-form model
// output. Models wrap their answers in prose, markdown fences, or a keyed
// {"text": ...} envelope; callers want the payload or a clean failure so
// they can fall back to a typed default.
//
// The recovery steps are fixed and run in order:
//  1. unwrap a {"text": "..."} envelope if the whole answer is one
//  2. trim surrounding whitespace
//  3. strip a leading/trailing markdown code fence
//  4. take the substring from the first opening delimiter to the last
//     closing delimiter; if neither is found, keep the whole string
//  5. parse the candidate as JSON
package lenient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject recovers a JSON object from answer into v.
func ExtractObject(answer string, v any) error {
	return extract(answer, "{", "}", v)
}

// ExtractArray recovers a JSON array from answer into v.
func ExtractArray(answer string, v any) error {
	return extract(answer, "[", "]", v)
}

func extract(answer, open, closing string, v any) error {
	s := unwrapEnvelope(answer)
	s = stripFences(strings.TrimSpace(s))

	candidate := s
	if i := strings.Index(s, open); i >= 0 {
		if j := strings.LastIndex(s, closing); j > i {
			candidate = s[i : j+len(closing)]
		}
	}

	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("lenient: no parseable %s...%s payload: %w", open, closing, err)
	}
	return nil
}

// unwrapEnvelope peels a {"text": "..."} wrapper some model client stacks
// put around the actual answer. Anything else passes through untouched.
func unwrapEnvelope(s string) string {
	var envelope struct {
		Text string `json:"text"`
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return s
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil || envelope.Text == "" {
		return s
	}
	return envelope.Text
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
