package answers

import (
	"testing"
	"time"

	types "github.com/yungbote/techform-backend/internal/domain"
)

func TestNormalizeScalar(t *testing.T) {
	if _, ok := NormalizeScalar(types.FieldShortText, "   "); ok {
		t.Fatalf("blank string should not prefill")
	}
	if _, ok := NormalizeScalar(types.FieldShortText, nil); ok {
		t.Fatalf("nil should not prefill")
	}
	if _, ok := NormalizeScalar(types.FieldDate, time.Time{}); ok {
		t.Fatalf("zero time should not prefill")
	}
	if v, _ := NormalizeScalar(types.FieldDate, fixedTime); v != "2026-03-02" {
		t.Fatalf("date: want=2026-03-02 got=%v", v)
	}
	v, ok := NormalizeScalar(types.FieldMultiSelect, `["a","b"]`)
	list, isList := v.([]any)
	if !ok || !isList || len(list) != 2 {
		t.Fatalf("multi-select json: got=%v", v)
	}
	v, _ = NormalizeScalar(types.FieldCheckboxGroup, "solo")
	if list, _ := v.([]any); len(list) != 1 || list[0] != "solo" {
		t.Fatalf("multi-select plain: got=%v", v)
	}
	if v, _ := NormalizeScalar(types.FieldShortText, `["a"]`); v != `["a"]` {
		t.Fatalf("text should stay a string: got=%v", v)
	}
	if v, ok := NormalizeScalar(types.FieldScore, 3); !ok || v != 3 {
		t.Fatalf("score: got=%v", v)
	}
}

func TestNormalizeRows(t *testing.T) {
	rows, ok := NormalizeRows([]any{map[string]any{"name": "a"}, "junk", map[string]any{"name": "b"}})
	if !ok || len(rows) != 2 || rows[1]["name"] != "b" {
		t.Fatalf("rows: got=%v ok=%v", rows, ok)
	}
	if _, ok := NormalizeRows([]any{}); ok {
		t.Fatalf("empty list should not prefill")
	}
	if _, ok := NormalizeRows("not json"); ok {
		t.Fatalf("bad string should not prefill")
	}
	rows, ok = NormalizeRows(`[{"name":"x"}]`)
	if !ok || len(rows) != 1 {
		t.Fatalf("json string rows: got=%v", rows)
	}
	if back := RowsToValue(rows); len(back) != 1 {
		t.Fatalf("RowsToValue: got=%v", back)
	}
}
