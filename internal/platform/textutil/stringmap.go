package textutil

import "strings"

// NormalizeStringMap trims values and slugifies keys, removing entries with empty keys or values.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		slug := Slug(key)
		trimmed := strings.TrimSpace(value)
		if slug == "" || trimmed == "" {
			continue
		}
		result[slug] = trimmed
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Slug lower-cases the input and joins whitespace separated words with hyphens.
func Slug(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), "-")
}
