package sourcemap

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Matches //# sourceMappingURL=... or //@ sourceMappingURL=...
var sourceMappingURLRe = regexp.MustCompile(`//[#@]\s*sourceMappingURL\s*=\s*([^\s]+)`)

// Parse parses sourcemap JSON data.
func Parse(data []byte) (*SourceMap, error) {
	var sm SourceMap
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("failed to parse sourcemap JSON: %w", err)
	}

	return &sm, nil
}

// ExtractSourceMappingURL finds the sourceMappingURL comment in JS content.
// Returns empty string if not found or if it's an inline data URI.
func ExtractSourceMappingURL(jsContent string) string {
	lines := strings.Split(strings.TrimSpace(jsContent), "\n")

	// The comment is emitted at the very end of a bundle
	start := len(lines) - 10
	if start < 0 {
		start = 0
	}

	for i := len(lines) - 1; i >= start; i-- {
		matches := sourceMappingURLRe.FindStringSubmatch(lines[i])
		if len(matches) >= 2 {
			url := strings.TrimSpace(matches[1])
			if strings.HasPrefix(url, "data:") {
				return ""
			}
			return url
		}
	}

	return ""
}
