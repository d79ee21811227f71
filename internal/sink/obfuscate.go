package sink

import (
	"regexp"
	"strings"
)

// Mask replaces sensitive values in notification payloads.
const Mask = "****"

// parseFieldList splits a comma-separated field list, trimming each
// entry and dropping empties.
func parseFieldList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			fields = append(fields, part)
		}
	}
	return fields
}

// StringObfuscate masks the values of listed fields wherever they occur
// in query-string form: "auth=5265" with list "auth" becomes
// "auth=****". Unlisted pairs pass through untouched.
func StringObfuscate(rawList, value string) string {
	fields := parseFieldList(rawList)
	if len(fields) == 0 || !strings.Contains(value, "=") {
		return value
	}

	for _, field := range fields {
		pattern := regexp.MustCompile(`(^|[&?\s])` + regexp.QuoteMeta(field) + `=[^&\s]*`)
		value = pattern.ReplaceAllString(value, "${1}"+field+"="+Mask)
	}
	return value
}

// ObjectObfuscate masks the values of listed keys in a string-keyed
// map, recursing into nested maps. Non-map payloads pass through
// unchanged.
func ObjectObfuscate(rawList string, payload any) any {
	fields := parseFieldList(rawList)
	if len(fields) == 0 {
		return payload
	}
	return obfuscateValue(fields, payload)
}

func obfuscateValue(fields []string, payload any) any {
	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	masked := make(map[string]any, len(m))
	for key, value := range m {
		if containsField(fields, key) {
			masked[key] = Mask
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			masked[key] = obfuscateValue(fields, nested)
			continue
		}
		masked[key] = value
	}
	return masked
}

func containsField(fields []string, key string) bool {
	for _, field := range fields {
		if field == key {
			return true
		}
	}
	return false
}
