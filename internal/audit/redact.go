package audit

// RedactionMarker replaces sensitive values in persisted metadata.
const RedactionMarker = "[REDACTED]"

// Redact returns a copy of metadata with every sensitive key's value
// replaced by RedactionMarker. Matching is by exact key name at any nesting
// depth. Nested maps are walked recursively; array elements that are
// themselves maps are walked the same way. The input is never mutated.
func Redact(metadata map[string]any, sensitiveKeys []string) map[string]any {
	if len(metadata) == 0 {
		return metadata
	}

	sensitive := make(map[string]struct{}, len(sensitiveKeys))
	for _, k := range sensitiveKeys {
		sensitive[k] = struct{}{}
	}
	return redactMap(metadata, sensitive)
}

func redactMap(m map[string]any, sensitive map[string]struct{}) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if _, hit := sensitive[key]; hit {
			out[key] = RedactionMarker
			continue
		}
		out[key] = redactValue(value, sensitive)
	}
	return out
}

func redactValue(v any, sensitive map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		return redactMap(val, sensitive)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = redactValue(elem, sensitive)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, elem := range val {
			out[i] = redactMap(elem, sensitive)
		}
		return out
	default:
		return v
	}
}
