package answers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/techform-backend/internal/domain"
)

func submissionBindings(cur string) map[string]BindingMetadata {
	return map[string]BindingMetadata{
		"overview":    {FieldCode: "overview", FieldType: types.FieldLongText, DictionaryKey: "triage.overview", CurrentRevisionID: cur},
		"competitors": {FieldCode: "competitors", FieldType: types.FieldRepeatableGroup, DictionaryKey: "triage.competitors", CurrentRevisionID: cur},
	}
}

func TestBuildMetadataFromSubmissionScalars(t *testing.T) {
	b := submissionBindings("rev-2")
	got := BuildMetadataFromSubmission(b, []ResponseRecord{
		{QuestionCode: "overview", Value: "x", QuestionRevisionID: "rev-1"},
		{QuestionCode: "reviewer_notes", Value: "form-local"},
	}, nil, fixedTime, StatusEvaluator{})

	require.Len(t, got, 1)
	md := got["overview"]
	require.Equal(t, StatusStale, md.Status)
	require.Equal(t, "rev-1", md.SavedRevisionID)
	require.Equal(t, "rev-2", md.CurrentRevisionID)
	require.Equal(t, SourceSubmission, md.Source)
	require.NotNil(t, md.AnsweredAt)
	require.True(t, md.AnsweredAt.Equal(fixedTime))

	got = BuildMetadataFromSubmission(b, []ResponseRecord{{QuestionCode: "overview", Value: "x"}}, nil, fixedTime, StatusEvaluator{})
	require.Equal(t, StatusUnknown, got["overview"].Status)
	require.Nil(t, got["overview"].AnsweredAt)
}

func TestGroupStatusStaleWhenAnyRowStale(t *testing.T) {
	b := submissionBindings("rev-2")
	rows := []GroupRowRecord{
		{QuestionCode: "competitors", RowIndex: 2, QuestionRevisionID: "rev-2"},
		{QuestionCode: "competitors", RowIndex: 0, QuestionRevisionID: "rev-2"},
		{QuestionCode: "competitors", RowIndex: 1, QuestionRevisionID: "rev-1"},
	}
	got := BuildMetadataFromSubmission(b, nil, rows, fixedTime, StatusEvaluator{})
	md := got["competitors"]
	require.Equal(t, StatusStale, md.Status)
	require.Equal(t, "rev-1", md.SavedRevisionID)

	for i := range rows {
		rows[i].QuestionRevisionID = "rev-2"
	}
	got = BuildMetadataFromSubmission(b, nil, rows, fixedTime, StatusEvaluator{})
	require.Equal(t, StatusFresh, got["competitors"].Status)
}

func TestGroupStatusUnstampedRows(t *testing.T) {
	b := submissionBindings("rev-2")
	got := BuildMetadataFromSubmission(b, nil, []GroupRowRecord{
		{QuestionCode: "competitors", RowIndex: 0},
		{QuestionCode: "competitors", RowIndex: 1},
	}, fixedTime, StatusEvaluator{})
	require.Equal(t, StatusUnknown, got["competitors"].Status)

	got = BuildMetadataFromSubmission(b, nil, []GroupRowRecord{
		{QuestionCode: "competitors", RowIndex: 0, QuestionRevisionID: "rev-2"},
		{QuestionCode: "competitors", RowIndex: 1},
	}, fixedTime, StatusEvaluator{})
	require.Equal(t, StatusStale, got["competitors"].Status, "partial stamping never reports FRESH")
}

func TestGroupRowsOrdersByIndex(t *testing.T) {
	got := GroupRows([]GroupRowRecord{
		{QuestionCode: "a", RowIndex: 3},
		{QuestionCode: "b", RowIndex: 0},
		{QuestionCode: "a", RowIndex: 1},
	})
	require.Len(t, got["a"], 2)
	require.Equal(t, 1, got["a"][0].RowIndex)
	require.Equal(t, 3, got["a"][1].RowIndex)
}

func TestRecordConverters(t *testing.T) {
	rev := uuid.New()
	r := ResponseRecordFrom(&types.QuestionResponse{QuestionCode: "overview", Value: types.JSON(`"x"`), QuestionRevisionID: &rev})
	require.Equal(t, "x", r.Value)
	require.Equal(t, rev.String(), r.QuestionRevisionID)

	g := GroupRowRecordFrom(&types.RepeatableGroupResponse{QuestionCode: "competitors", RowIndex: 2, Data: types.JSON(`{"name":"Acme"}`)})
	require.Equal(t, "Acme", g.Data["name"])
	require.Empty(t, g.QuestionRevisionID)
}

func TestGroupSavedRevisionNamesStaleRowUnderSignificantPolicy(t *testing.T) {
	qid := uuid.New()
	// v1 initial, v2 significant, v3 cosmetic
	revs := revisionRows(qid, true, true, false)
	ev := StatusEvaluator{Policy: PolicySignificant, History: NewRevisionTimeline(revs)}
	b := submissionBindings(revs[2].ID.String())

	rows := []GroupRowRecord{
		{QuestionCode: "competitors", RowIndex: 0, QuestionRevisionID: revs[1].ID.String()},
		{QuestionCode: "competitors", RowIndex: 1, QuestionRevisionID: revs[0].ID.String()},
	}
	md := BuildMetadataFromSubmission(b, nil, rows, fixedTime, ev)["competitors"]
	require.Equal(t, StatusStale, md.Status)
	require.Equal(t, revs[0].ID.String(), md.SavedRevisionID, "saved revision must be the row judged stale")

	md = BuildMetadataFromSubmission(b, nil, rows[:1], fixedTime, ev)["competitors"]
	require.Equal(t, StatusFresh, md.Status)
	require.Equal(t, revs[1].ID.String(), md.SavedRevisionID)
}
