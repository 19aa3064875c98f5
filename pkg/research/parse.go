package research

import (
	"encoding/json"
	"strings"
)

// ParseStringList extracts a list of strings from a model reply. Models are
// asked for a bare JSON array but routinely wrap it in markdown fences or
// prose, so parsing falls back from strict JSON to an embedded array to
// bullet or numbered lines. Entries are trimmed, deduplicated, and capped
// at limit. A nil result means no usable list was found.
func ParseStringList(raw string, limit int) []string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if items := parseJSONArray(cleaned); items != nil {
		return capList(items, limit)
	}

	// The array may be embedded in surrounding prose.
	if start, end := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]"); start >= 0 && end > start {
		if items := parseJSONArray(cleaned[start : end+1]); items != nil {
			return capList(items, limit)
		}
	}

	return capList(parseBulletLines(cleaned), limit)
}

func parseJSONArray(s string) []string {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}

func parseBulletLines(s string) []string {
	var items []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		trimmed := strings.TrimLeft(line, "-*0123456789.) ")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), ",")
		trimmed = strings.TrimSpace(strings.Trim(trimmed, `"`))
		// Only treat marked lines as list entries; prose lines are noise.
		if trimmed != "" && trimmed != line {
			items = append(items, trimmed)
		}
	}
	return items
}

func capList(items []string, limit int) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
