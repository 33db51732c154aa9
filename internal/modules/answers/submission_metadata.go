package answers

import (
	"encoding/json"
	"sort"
	"time"

	types "github.com/yungbote/techform-backend/internal/domain"
)

// SourceSubmission tags metadata rebuilt from submission records.
const SourceSubmission = "submission"

// ResponseRecord is the latest persisted answer for one scalar field.
type ResponseRecord struct {
	QuestionCode       string `json:"questionCode"`
	Value              any    `json:"value"`
	QuestionRevisionID string `json:"questionRevisionId,omitempty"`
}

// GroupRowRecord is one persisted row of a repeated group.
type GroupRowRecord struct {
	QuestionCode       string         `json:"questionCode"`
	RowIndex           int            `json:"rowIndex"`
	Data               map[string]any `json:"data"`
	QuestionRevisionID string         `json:"questionRevisionId,omitempty"`
}

func ResponseRecordFrom(r *types.QuestionResponse) ResponseRecord {
	rec := ResponseRecord{QuestionCode: r.QuestionCode, QuestionRevisionID: types.RevisionKey(r.QuestionRevisionID)}
	if len(r.Value) > 0 {
		var v any
		if err := json.Unmarshal(r.Value, &v); err == nil {
			rec.Value = v
		}
	}
	return rec
}

func GroupRowRecordFrom(r *types.RepeatableGroupResponse) GroupRowRecord {
	rec := GroupRowRecord{
		QuestionCode:       r.QuestionCode,
		RowIndex:           r.RowIndex,
		QuestionRevisionID: types.RevisionKey(r.QuestionRevisionID),
		Data:               map[string]any{},
	}
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &rec.Data)
	}
	return rec
}

// GroupRows buckets rows by field code, each bucket ordered by row index.
func GroupRows(rows []GroupRowRecord) map[string][]GroupRowRecord {
	out := map[string][]GroupRowRecord{}
	for _, r := range rows {
		out[r.QuestionCode] = append(out[r.QuestionCode], r)
	}
	for code := range out {
		bucket := out[code]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].RowIndex < bucket[j].RowIndex })
	}
	return out
}

// BuildMetadataFromSubmission rebuilds answer status from submission records
// alone. Fields without a record are left out; the caller decides whether an
// absent field is worth reporting.
func BuildMetadataFromSubmission(
	bindings map[string]BindingMetadata,
	responses []ResponseRecord,
	rows []GroupRowRecord,
	answeredAt time.Time,
	eval StatusEvaluator,
) map[string]AnswerMetadata {
	out := map[string]AnswerMetadata{}
	var at *time.Time
	if !answeredAt.IsZero() {
		t := answeredAt.UTC()
		at = &t
	}

	for _, r := range responses {
		b, ok := bindings[r.QuestionCode]
		if !ok || b.Repeatable() {
			continue
		}
		var entry *VersionedAnswer
		if r.QuestionRevisionID != "" {
			entry = &VersionedAnswer{Value: r.Value, QuestionRevisionID: r.QuestionRevisionID, Source: SourceSubmission}
		}
		md := eval.Metadata(b, entry)
		if entry != nil {
			md.AnsweredAt = at
		}
		out[r.QuestionCode] = md
	}

	for code, bucket := range GroupRows(rows) {
		b, ok := bindings[code]
		if !ok || !b.Repeatable() {
			continue
		}
		out[code] = groupMetadata(b, bucket, at, eval)
	}
	return out
}

// groupMetadata is FRESH only when every row was answered against a revision
// the evaluator accepts. A row without a revision makes the group STALE unless
// no row has one, in which case the group is UNKNOWN.
func groupMetadata(b BindingMetadata, rows []GroupRowRecord, at *time.Time, eval StatusEvaluator) AnswerMetadata {
	md := AnswerMetadata{
		Status:            StatusUnknown,
		DictionaryKey:     b.DictionaryKey,
		CurrentRevisionID: b.CurrentRevisionID,
	}
	stamped := 0
	status := StatusFresh
	var firstAccepted, firstStale string
	for _, r := range rows {
		if r.QuestionRevisionID == "" {
			status = StatusStale
			continue
		}
		stamped++
		entry := &VersionedAnswer{QuestionRevisionID: r.QuestionRevisionID, Source: SourceSubmission}
		if eval.Evaluate(entry, b.CurrentRevisionID) != StatusFresh {
			status = StatusStale
			if firstStale == "" {
				firstStale = r.QuestionRevisionID
			}
			continue
		}
		if firstAccepted == "" {
			firstAccepted = r.QuestionRevisionID
		}
	}
	// A stale group points at the row that made it stale.
	md.SavedRevisionID = firstAccepted
	if firstStale != "" {
		md.SavedRevisionID = firstStale
	}
	if stamped == 0 {
		return md
	}
	md.Status = status
	md.Source = SourceSubmission
	md.AnsweredAt = at
	return md
}
