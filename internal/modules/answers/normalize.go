package answers

import (
	"encoding/json"
	"strings"
	"time"

	types "github.com/yungbote/techform-backend/internal/domain"
)

// NormalizeScalar shapes a resolved value for a non-repeatable field. ok is
// false when there is nothing worth prefilling.
func NormalizeScalar(fieldType string, v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, false
		}
		if fieldType == types.FieldMultiSelect || fieldType == types.FieldCheckboxGroup {
			var list []any
			if err := json.Unmarshal([]byte(x), &list); err == nil {
				return list, true
			}
			return []any{x}, true
		}
		return x, true
	case time.Time:
		if x.IsZero() {
			return nil, false
		}
		if fieldType == types.FieldDate {
			return x.UTC().Format(dateLayout), true
		}
		return x.UTC().Format(time.RFC3339), true
	case []any:
		if len(x) == 0 {
			return nil, false
		}
		return x, true
	default:
		return v, true
	}
}

// NormalizeRows shapes a resolved value for a repeatable field. Items that
// are not objects are dropped.
func NormalizeRows(v any) ([]map[string]any, bool) {
	var items []any
	switch x := v.(type) {
	case nil:
		return nil, false
	case []map[string]any:
		if len(x) == 0 {
			return nil, false
		}
		return x, true
	case []any:
		items = x
	case string:
		if err := json.Unmarshal([]byte(x), &items); err != nil {
			return nil, false
		}
	case []byte:
		if err := json.Unmarshal(x, &items); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	rows := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

// RowsToValue converts group rows to the []any form stored in JSON columns and bags.
func RowsToValue(rows []map[string]any) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out
}
