package answers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/pkg/pointers"
)

func TestAssignCoercesToColumnType(t *testing.T) {
	stage := &types.TriageStage{MarketScore: pointers.To(2)}

	a, err := Assign(stage, "marketScore", float64(4))
	require.NoError(t, err)
	require.Equal(t, "market_score", a.Column)
	require.True(t, a.Changed)
	require.Equal(t, 4, pointers.ValueOr(stage.MarketScore, 0))

	a, err = Assign(stage, "marketScore", "4")
	require.NoError(t, err)
	require.False(t, a.Changed)

	_, err = Assign(stage, "impactScore", 3.5)
	require.NoError(t, err)
	require.Equal(t, 3.5, pointers.ValueOr(stage.ImpactScore, 0))

	a, err = Assign(stage, "competitors", []any{map[string]any{"name": "Acme"}})
	require.NoError(t, err)
	require.Equal(t, "competitors", a.Column)
	require.JSONEq(t, `[{"name":"Acme"}]`, string(stage.Competitors))

	a, err = Assign(stage, "competitors", []any{map[string]any{"name": "Acme"}})
	require.NoError(t, err)
	require.False(t, a.Changed, "semantically equal JSON is unchanged")

	_, err = Assign(stage, "reviewedAt", "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, stage.ReviewedAt)
	require.True(t, stage.ReviewedAt.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))

	a, err = Assign(stage, "reviewedAt", "")
	require.NoError(t, err)
	require.True(t, a.Changed)
	require.Nil(t, stage.ReviewedAt)
}

func TestAssignRejects(t *testing.T) {
	stage := &types.TriageStage{}

	_, err := Assign(stage, "rowVersion", 9)
	require.True(t, errors.Is(err, ErrUnknownField), "err=%v", err)
	require.Equal(t, 0, stage.RowVersion)

	_, err = Assign(stage, "marketScore", 2.5)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), "err=%v", err)

	_, err = Assign(stage, "marketScore", "lots")
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), "err=%v", err)

	_, err = Assign(stage, "reviewedAt", "next tuesday")
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), "err=%v", err)
}

func TestReadFieldDecodesJSONAndTime(t *testing.T) {
	ts := fixedTime
	stage := &types.TriageStage{Competitors: types.JSON(`["a","b"]`), ReviewedAt: &ts}

	v, ok := ReadField(stage, "competitors")
	require.True(t, ok)
	require.Equal(t, []any{"a", "b"}, v)

	v, ok = ReadField(stage, "reviewedAt")
	require.True(t, ok)
	require.Equal(t, fixedTime, v)

	stage.ReviewedAt = nil
	v, ok = ReadField(stage, "reviewedAt")
	require.True(t, ok)
	require.Nil(t, v)
}

func TestValuesEqual(t *testing.T) {
	require.True(t, ValuesEqual(float64(3), 3))
	require.True(t, ValuesEqual([]any{"a"}, []string{"a"}))
	require.True(t, ValuesEqual(map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}))
	require.False(t, ValuesEqual("3", 3))
	require.True(t, JSONEqual(nil, []byte("null")))
}

func TestAssignNullableScore(t *testing.T) {
	stage := &types.TriageStage{}

	v, ok := ReadField(stage, "marketScore")
	require.True(t, ok)
	require.Nil(t, v, "unanswered score reads as nil, not 0")

	a, err := Assign(stage, "marketScore", float64(0))
	require.NoError(t, err)
	require.True(t, a.Changed)
	require.NotNil(t, stage.MarketScore)
	v, _ = ReadField(stage, "marketScore")
	require.Equal(t, 0, v)

	a, err = Assign(stage, "marketScore", " ")
	require.NoError(t, err)
	require.True(t, a.Changed)
	require.Nil(t, stage.MarketScore)

	a, err = Assign(stage, "marketScore", nil)
	require.NoError(t, err)
	require.False(t, a.Changed)
}
