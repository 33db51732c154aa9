package aggregates

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/yungbote/techform-backend/internal/data/repos"
	repotest "github.com/yungbote/techform-backend/internal/data/repos/testutil"
	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	"github.com/yungbote/techform-backend/internal/pkg/pointers"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type answerHarness struct {
	ctx   context.Context
	tx    *gorm.DB
	set   repos.Set
	hooks *spyHooks
	agg   domainagg.AnswerAggregate
	tmpl  *types.FormTemplate
	tech  *types.Technology

	keys map[string]string
	qs   map[string]*types.Question
	revs map[string]*types.QuestionRevision
}

var writtenAt = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newAnswerHarness(t *testing.T) *answerHarness {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	ctx := context.Background()

	h := &answerHarness{
		ctx:   ctx,
		tx:    tx,
		set:   repos.NewSet(tx, log),
		hooks: &spyHooks{},
		keys:  map[string]string{},
		qs:    map[string]*types.Question{},
		revs:  map[string]*types.QuestionRevision{},
	}
	bound := []struct {
		code, typ, path, source string
	}{
		{"tech_name", types.FieldShortText, "technology.technologyName", ""},
		{"overview", types.FieldLongText, "triageStage.technologyOverview", ""},
		{"market_score", types.FieldScore, "triageStage.marketScore", ""},
		{"competitors", types.FieldRepeatableGroup, "triageStage.competitors", ""},
		{"pathway", types.FieldShortText, "triageStage.regulatoryPathway", types.DataSourceExtended},
		{"risk", types.FieldLongText, "viabilityStage.riskAssessment", ""},
	}
	fields := make([]repotest.Field, 0, len(bound)+1)
	for _, b := range bound {
		key := repotest.Unique(b.code)
		q, rev := repotest.SeedQuestion(t, ctx, tx, key, b.path, b.source)
		h.keys[b.code] = key
		h.qs[b.code] = q
		h.revs[b.code] = rev
		fields = append(fields, repotest.Field{Code: b.code, Type: b.typ, Key: key})
	}
	fields = append(fields, repotest.Field{Code: "reviewer_notes", Type: types.FieldLongText})
	h.tmpl = repotest.SeedTemplate(t, ctx, tx, false, fields...)
	h.tech = repotest.SeedTechnology(t, ctx, tx, repotest.Unique("TECH"), true)

	h.agg = NewAnswerAggregate(AnswerAggregateDeps{
		Base: BaseDeps{
			DB:       tx,
			Log:      log,
			Runner:   NewGormTxRunner(tx),
			Hooks:    h.hooks,
			CASGuard: NewCASGuard(tx),
		},
		Templates:  h.set.Templates,
		Technology: h.set.Technology,
		Clock:      func() time.Time { return writtenAt },
	})
	return h
}

func (h *answerHarness) write(t *testing.T, techID string, responses map[string]any, expected domainagg.RowVersions) (domainagg.ApplyBindingWritesResult, error) {
	t.Helper()
	return h.agg.ApplyBindingWrites(h.ctx, domainagg.ApplyBindingWritesInput{
		TemplateID:          &h.tmpl.ID,
		TechID:              techID,
		Responses:           responses,
		ExpectedRowVersions: expected,
		Actor:               "reviewer@example.org",
	})
}

func (h *answerHarness) reload(t *testing.T, techID string) *types.Technology {
	t.Helper()
	tech, err := h.set.Technology.GetByTechID(dbctx.Context{Ctx: h.ctx, Tx: h.tx}, techID)
	if err != nil {
		t.Fatalf("reload technology: %v", err)
	}
	if tech == nil {
		t.Fatalf("technology %s not found", techID)
	}
	return tech
}

func bagOf(t *testing.T, raw []byte) answers.ExtendedData {
	t.Helper()
	bag, err := answers.ParseExtendedData(raw, "test", nil)
	if err != nil {
		t.Fatalf("parse bag: %v", err)
	}
	return bag
}

func TestApplyBindingWritesUpdatesColumnsAndStampsMetadata(t *testing.T) {
	h := newAnswerHarness(t)
	res, err := h.write(t, h.tech.TechID, map[string]any{
		"overview":       "x",
		"market_score":   float64(4),
		"pathway":        "510(k)",
		"reviewer_notes": "form-local, never bound",
	}, domainagg.RowVersions{types.RootTriageStage: 0})
	if err != nil {
		t.Fatalf("ApplyBindingWrites: %v", err)
	}
	if res.Created {
		t.Fatalf("existing technology reported as created")
	}
	if res.RowVersions[types.RootTriageStage] != 1 || res.RowVersions[types.RootTechnology] != 0 {
		t.Fatalf("row versions: got=%v", res.RowVersions)
	}
	if len(res.StampedKeys) != 3 {
		t.Fatalf("stamped keys: want=3 got=%v", res.StampedKeys)
	}

	got := h.reload(t, h.tech.TechID)
	st := got.TriageStage
	if st.TechnologyOverview != "x" || pointers.ValueOr(st.MarketScore, 0) != 4 {
		t.Fatalf("columns: overview=%q market=%v", st.TechnologyOverview, st.MarketScore)
	}
	if st.RowVersion != 1 {
		t.Fatalf("triage row_version: want=1 got=%d", st.RowVersion)
	}
	if got.RowVersion != 0 {
		t.Fatalf("technology row_version must not move: got=%d", got.RowVersion)
	}
	bag := bagOf(t, st.ExtendedData)
	for _, code := range []string{"overview", "market_score", "pathway"} {
		entry := bag.Lookup(h.keys[code])
		if entry == nil {
			t.Fatalf("%s: missing bag entry", code)
		}
		if entry.QuestionRevisionID != h.revs[code].ID.String() {
			t.Fatalf("%s revision: want=%s got=%s", code, h.revs[code].ID, entry.QuestionRevisionID)
		}
		if entry.Source != types.RootTriageStage || !entry.AnsweredAt.Equal(writtenAt) {
			t.Fatalf("%s entry: got=%+v", code, entry)
		}
	}
	if v := bag.Lookup(h.keys["pathway"]).Value; v != "510(k)" {
		t.Fatalf("extended value: got=%v", v)
	}
}

func TestApplyBindingWritesKeepsUntouchedBagKeys(t *testing.T) {
	h := newAnswerHarness(t)
	legacy := `{"legacyNote":"keep me","other.key":{"value":"v","questionRevisionId":"r-1","answeredAt":"2025-01-01T00:00:00Z"}}`
	if err := h.tx.Table("triage_stage").Where("id = ?", h.tech.TriageStage.ID).Update("extended_data", legacy).Error; err != nil {
		t.Fatalf("seed bag: %v", err)
	}

	if _, err := h.write(t, h.tech.TechID, map[string]any{"overview": "x"}, domainagg.RowVersions{types.RootTriageStage: 0}); err != nil {
		t.Fatalf("ApplyBindingWrites: %v", err)
	}
	raw := h.reload(t, h.tech.TechID).TriageStage.ExtendedData
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode bag: %v", err)
	}
	if string(doc["legacyNote"]) != `"keep me"` {
		t.Fatalf("foreign key dropped: %s", raw)
	}
	if _, ok := doc["other.key"]; !ok {
		t.Fatalf("untouched entry dropped: %s", raw)
	}
	if _, ok := doc[h.keys["overview"]]; !ok {
		t.Fatalf("new entry missing: %s", raw)
	}
}

func TestApplyBindingWritesConcurrentWritersOneLoses(t *testing.T) {
	h := newAnswerHarness(t)
	repotest.SetRowVersion(t, h.ctx, h.tx, "triage_stage", h.tech.TriageStage.ID, 5)

	// both writers loaded the stage at row_version 5
	loaded := domainagg.RowVersions{types.RootTriageStage: 5}
	res, err := h.write(t, h.tech.TechID, map[string]any{"overview": "writer one"}, loaded.Clone())
	if err != nil {
		t.Fatalf("writer one: %v", err)
	}
	if res.RowVersions[types.RootTriageStage] != 6 {
		t.Fatalf("writer one version: want=6 got=%d", res.RowVersions[types.RootTriageStage])
	}

	_, err = h.write(t, h.tech.TechID, map[string]any{"overview": "writer two", "market_score": 2}, loaded.Clone())
	if !domainagg.IsOptimisticLock(err) {
		t.Fatalf("writer two: want optimistic lock error, got %v", err)
	}
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("writer two code: want=conflict got=%s", domainagg.CodeOf(err))
	}

	st := h.reload(t, h.tech.TechID).TriageStage
	if st.TechnologyOverview != "writer one" || st.MarketScore != nil || st.RowVersion != 6 {
		t.Fatalf("losing writer mutated the row: %+v", st)
	}
	if len(h.hooks.Conflicts) != 1 {
		t.Fatalf("conflicts observed: want=1 got=%d", len(h.hooks.Conflicts))
	}
}

func TestApplyBindingWritesReplayWithUsedVersionConflicts(t *testing.T) {
	h := newAnswerHarness(t)
	in := map[string]any{"overview": "same"}
	if _, err := h.write(t, h.tech.TechID, in, domainagg.RowVersions{types.RootTriageStage: 0}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	_, err := h.write(t, h.tech.TechID, in, domainagg.RowVersions{types.RootTriageStage: 0})
	if !domainagg.IsOptimisticLock(err) {
		t.Fatalf("replay: want optimistic lock error, got %v", err)
	}
}

func TestApplyBindingWritesRequiresExpectedVersionForTouchedRecord(t *testing.T) {
	h := newAnswerHarness(t)
	_, err := h.write(t, h.tech.TechID, map[string]any{"overview": "x"}, nil)
	if !domainagg.IsOptimisticLock(err) {
		t.Fatalf("missing version: want optimistic lock error, got %v", err)
	}

	// untouched records need no version
	if _, err := h.write(t, h.tech.TechID, map[string]any{"tech_name": "Renamed"}, domainagg.RowVersions{types.RootTechnology: 0}); err != nil {
		t.Fatalf("technology-only write: %v", err)
	}
	got := h.reload(t, h.tech.TechID)
	if got.TechnologyName != "Renamed" || got.LastModifiedBy != "reviewer@example.org" {
		t.Fatalf("technology write: name=%q by=%q", got.TechnologyName, got.LastModifiedBy)
	}
}

func TestApplyBindingWritesRestampsAfterRevision(t *testing.T) {
	h := newAnswerHarness(t)
	res, err := h.write(t, h.tech.TechID, map[string]any{"overview": "x"}, domainagg.RowVersions{types.RootTriageStage: 0})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	// unchanged value, unchanged revision: nothing restamped, version still moves
	res, err = h.write(t, h.tech.TechID, map[string]any{"overview": "x"}, res.RowVersions)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if len(res.StampedKeys) != 0 {
		t.Fatalf("unchanged answer restamped: %v", res.StampedKeys)
	}
	if res.RowVersions[types.RootTriageStage] != 2 {
		t.Fatalf("version: want=2 got=%d", res.RowVersions[types.RootTriageStage])
	}

	rev2 := repotest.SeedRevision(t, h.ctx, h.tx, h.qs["overview"], true)
	res, err = h.write(t, h.tech.TechID, map[string]any{"overview": "x"}, res.RowVersions)
	if err != nil {
		t.Fatalf("third write: %v", err)
	}
	if len(res.StampedKeys) != 1 || res.StampedKeys[0] != h.keys["overview"] {
		t.Fatalf("confirming a stale answer should restamp: %v", res.StampedKeys)
	}
	entry := bagOf(t, h.reload(t, h.tech.TechID).TriageStage.ExtendedData).Lookup(h.keys["overview"])
	if entry == nil || entry.QuestionRevisionID != rev2.ID.String() {
		t.Fatalf("entry after restamp: %+v", entry)
	}
}

func TestApplyBindingWritesCreatesTechnologyAndStages(t *testing.T) {
	h := newAnswerHarness(t)
	techID := repotest.Unique("NEW")

	res, err := h.write(t, techID, map[string]any{
		"tech_name": "Gizmo",
		"overview":  "new overview",
		"risk":      "low",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.Created || res.TechID != techID {
		t.Fatalf("create result: %+v", res)
	}
	for _, root := range types.Roots {
		if v, ok := res.RowVersions.Lookup(root); !ok || v != 0 {
			t.Fatalf("%s version: want=0 got=%d ok=%v", root, v, ok)
		}
	}
	got := h.reload(t, techID)
	if got.TechnologyName != "Gizmo" || got.CurrentStage != "TRIAGE" || got.Status != "ACTIVE" {
		t.Fatalf("technology: %+v", got)
	}
	if got.TriageStage == nil || got.TriageStage.TechnologyOverview != "new overview" {
		t.Fatalf("triage stage: %+v", got.TriageStage)
	}
	if got.ViabilityStage == nil || got.ViabilityStage.RiskAssessment != "low" {
		t.Fatalf("viability stage: %+v", got.ViabilityStage)
	}
	if bagOf(t, got.ExtendedData).Lookup(h.keys["tech_name"]) == nil {
		t.Fatalf("technology bag not stamped")
	}
}

func TestApplyBindingWritesCreateRequiresIdentity(t *testing.T) {
	h := newAnswerHarness(t)
	_, err := h.write(t, repotest.Unique("NEW"), map[string]any{"overview": "x"}, nil)
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("incomplete create: want validation, got %v", err)
	}

	res, err := h.agg.ApplyBindingWrites(h.ctx, domainagg.ApplyBindingWritesInput{
		TemplateID:                &h.tmpl.ID,
		Responses:                 map[string]any{"overview": "draft"},
		AllowCreateWhenIncomplete: true,
	})
	if err != nil {
		t.Fatalf("draft create: %v", err)
	}
	if !res.Created || len(res.TechID) != len("DRAFT-")+8 {
		t.Fatalf("draft create result: %+v", res)
	}
	if got := h.reload(t, res.TechID); got.TechnologyName != "Untitled technology" {
		t.Fatalf("draft name: %q", got.TechnologyName)
	}
}

func TestApplyBindingWritesStageVanishedConflicts(t *testing.T) {
	h := newAnswerHarness(t)
	_, err := h.write(t, h.tech.TechID, map[string]any{"risk": "high"}, domainagg.RowVersions{types.RootViabilityStage: 3})
	if !domainagg.IsOptimisticLock(err) {
		t.Fatalf("want optimistic lock error, got %v", err)
	}
	if h.reload(t, h.tech.TechID).ViabilityStage != nil {
		t.Fatalf("stage created despite conflict")
	}
}

func TestApplyBindingWritesRejectsBadValue(t *testing.T) {
	h := newAnswerHarness(t)
	_, err := h.write(t, h.tech.TechID, map[string]any{"market_score": "lots"}, domainagg.RowVersions{types.RootTriageStage: 0})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation, got %v", err)
	}
}

func TestApplyBindingWritesUnknownTemplate(t *testing.T) {
	h := newAnswerHarness(t)
	missing := uuid.New()
	_, err := h.agg.ApplyBindingWrites(h.ctx, domainagg.ApplyBindingWritesInput{TemplateID: &missing, TechID: h.tech.TechID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
}

func TestApplyBindingWritesNothingBoundIsNoop(t *testing.T) {
	h := newAnswerHarness(t)
	res, err := h.write(t, h.tech.TechID, map[string]any{"reviewer_notes": "only local"}, nil)
	if err != nil {
		t.Fatalf("noop: %v", err)
	}
	if res.Created || res.RowVersions[types.RootTriageStage] != 0 {
		t.Fatalf("noop result: %+v", res)
	}
}

func TestApplyBindingWritesRejectsExtendedAnswerWithoutRevision(t *testing.T) {
	h := newAnswerHarness(t)
	if err := h.tx.Model(&types.Question{}).
		Where("id = ?", h.qs["pathway"].ID).
		Update("current_revision_id", nil).Error; err != nil {
		t.Fatalf("clear revision pointer: %v", err)
	}

	_, err := h.write(t, h.tech.TechID, map[string]any{
		"overview": "x",
		"pathway":  "510(k)",
	}, domainagg.RowVersions{types.RootTriageStage: 0})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation, got %v", err)
	}

	stage := h.reload(t, h.tech.TechID).TriageStage
	if stage == nil {
		t.Fatalf("triage stage missing")
	}
	if stage.RowVersion != 0 || stage.TechnologyOverview != "" {
		t.Fatalf("write applied despite rejection: version=%d overview=%q", stage.RowVersion, stage.TechnologyOverview)
	}
	if entry := bagOf(t, stage.ExtendedData).Lookup(h.keys["pathway"]); entry != nil {
		t.Fatalf("extended answer stored without a revision: %+v", entry)
	}
}

func TestApplyBindingWritesMalformedBagLogsOneLine(t *testing.T) {
	h := newAnswerHarness(t)
	if h.tx.Dialector.Name() == "postgres" {
		t.Skip("jsonb rejects a malformed bag at write time")
	}
	core, logs := observer.New(zapcore.WarnLevel)
	h.agg = NewAnswerAggregate(AnswerAggregateDeps{
		Base: BaseDeps{
			DB:       h.tx,
			Log:      &logger.Logger{SugaredLogger: zap.New(core).Sugar()},
			Runner:   NewGormTxRunner(h.tx),
			Hooks:    h.hooks,
			CASGuard: NewCASGuard(h.tx),
		},
		Templates:  h.set.Templates,
		Technology: h.set.Technology,
		Clock:      func() time.Time { return writtenAt },
	})
	if err := h.tx.Model(&types.TriageStage{}).
		Where("id = ?", h.tech.TriageStage.ID).
		Update("extended_data", "{not json").Error; err != nil {
		t.Fatalf("corrupt bag: %v", err)
	}

	if _, err := h.write(t, h.tech.TechID, map[string]any{"pathway": "De Novo"}, domainagg.RowVersions{types.RootTriageStage: 0}); err != nil {
		t.Fatalf("write over malformed bag: %v", err)
	}

	warned := logs.FilterMessageSnippet("answer metadata unreadable").AllUntimed()
	if len(warned) != 1 {
		t.Fatalf("warnings: want=1 got=%d", len(warned))
	}
	msg, ok := warned[0].ContextMap()["error"].(string)
	if !ok {
		t.Fatalf("error field: want string got %T", warned[0].ContextMap()["error"])
	}
	if msg == "" || strings.Contains(msg, "\n") {
		t.Fatalf("error field should be a single line: %q", msg)
	}
	if entry := bagOf(t, h.reload(t, h.tech.TechID).TriageStage.ExtendedData).Lookup(h.keys["pathway"]); entry == nil {
		t.Fatalf("bag not rewritten with this write's entry")
	}
}

func TestApplyBindingWritesBlankScoreClearsColumn(t *testing.T) {
	h := newAnswerHarness(t)
	if _, err := h.write(t, h.tech.TechID, map[string]any{"market_score": float64(0)}, domainagg.RowVersions{types.RootTriageStage: 0}); err != nil {
		t.Fatalf("score 0: %v", err)
	}
	st := h.reload(t, h.tech.TechID).TriageStage
	if st.MarketScore == nil || *st.MarketScore != 0 {
		t.Fatalf("explicit zero: want=0 got=%v", st.MarketScore)
	}

	if _, err := h.write(t, h.tech.TechID, map[string]any{"market_score": ""}, domainagg.RowVersions{types.RootTriageStage: 1}); err != nil {
		t.Fatalf("clear score: %v", err)
	}
	st = h.reload(t, h.tech.TechID).TriageStage
	if st.MarketScore != nil {
		t.Fatalf("cleared score: want=nil got=%d", *st.MarketScore)
	}
	if st.RowVersion != 2 {
		t.Fatalf("row_version: want=2 got=%d", st.RowVersion)
	}
}
