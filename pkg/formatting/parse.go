package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON is returned when content contains no JSON candidate at all.
	ErrNoJSON = errors.New("no JSON found in response")
	// ErrParseFailed is returned when every JSON candidate in content fails to unmarshal.
	ErrParseFailed = errors.New("failed to parse response")
)

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// JSONCandidates returns the substrings of content that may hold a JSON document,
// in the order they should be tried: the whole trimmed content when it starts
// with '{' or '[', the body of the first markdown code fence, and the span from
// the first '{' to the last '}'.
func JSONCandidates(content string) []string {
	content = strings.TrimSpace(content)
	candidates := make([]string, 0, 3)

	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		candidates = append(candidates, content)
	}

	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) >= 2 {
		if block := strings.TrimSpace(matches[1]); block != "" {
			candidates = append(candidates, block)
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		candidates = append(candidates, content[start:end+1])
	}

	return candidates
}

// Parse unmarshals the first JSON candidate in content that decodes into T.
// Returns ErrNoJSON if content has no candidate and ErrParseFailed if none decode.
func Parse[T any](content string) (T, error) {
	var result T

	candidates := JSONCandidates(content)
	if len(candidates) == 0 {
		return result, ErrNoJSON
	}

	var lastErr error
	for _, candidate := range candidates {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}

	return result, fmt.Errorf("%w: %v", ErrParseFailed, lastErr)
}
