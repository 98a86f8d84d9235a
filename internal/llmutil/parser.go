// File: internal/llmutil/parser.go
//
// Package llmutil hardens the engine against the formatting quirks of LLM
// output: markdown fences, language tags, and conversational padding around
// the JSON payload we actually asked for.
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Raw strings cannot hold backticks, hence \x60.
var fencedJSONRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ParseJSONResponse parses a model response into the target type, stripping
// markdown fences and any conversational text surrounding the JSON object.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	payload := response

	if strings.HasPrefix(response, "```") {
		if m := fencedJSONRegex.FindStringSubmatch(response); len(m) > 1 {
			payload = m[1]
		}
	} else if !strings.HasPrefix(response, "{") {
		// "Sure! Here is the answer: {...}" and friends.
		fb := strings.Index(response, "{")
		lb := strings.LastIndex(response, "}")
		if fb != -1 && lb > fb {
			payload = response[fb : lb+1]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w (payload: %s)", err, truncate(payload, 300))
	}
	return &result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
