package generator

import (
	"encoding/json"
	"strings"
)

// CleanJSON strips markdown code fences and any prose around the first JSON object.
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	// Remove opening ```json or ``` with optional newline
	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")

	// models sometimes add a sentence before or after the object
	start := strings.Index(clean, "{")
	if start < 0 {
		return strings.TrimSpace(clean)
	}
	var obj json.RawMessage
	if err := json.NewDecoder(strings.NewReader(clean[start:])).Decode(&obj); err == nil {
		return string(obj)
	}
	// not decodable; hand the outermost braces to the parser so it reports the error
	if end := strings.LastIndex(clean, "}"); end > start {
		clean = clean[start : end+1]
	}
	return strings.TrimSpace(clean)
}
