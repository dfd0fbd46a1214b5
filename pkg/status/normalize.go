package status

import (
	"fmt"
	"strings"
)

// Normalize converts error-like values into a plain {message, kind}
// structure so status views are always representable as structured data.
// Celery serializes raised exceptions as {exc_type, exc_message, exc_module}
// maps; Go errors are stringified here. Everything else passes through
// verbatim.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return map[string]interface{}{
			"message": t.Error(),
			"kind":    fmt.Sprintf("%T", t),
		}
	case map[string]interface{}:
		if norm, ok := normalizeExceptionMap(t); ok {
			return norm
		}
		return t
	default:
		return v
	}
}

func normalizeExceptionMap(m map[string]interface{}) (map[string]interface{}, bool) {
	excType, ok := m["exc_type"].(string)
	if !ok {
		return nil, false
	}
	return map[string]interface{}{
		"message": excMessage(m["exc_message"]),
		"kind":    excType,
	}, true
}

func excMessage(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ": ")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
