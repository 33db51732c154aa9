package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/techform-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/techform-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/techform-backend/internal/data/repos"
	repotest "github.com/yungbote/techform-backend/internal/data/repos/testutil"
	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type fakeAnswerAggregate struct {
	calls int
	last  domainagg.ApplyBindingWritesInput
	err   error
}

func (f *fakeAnswerAggregate) Contract() domainagg.Contract { return domainagg.AnswerAggregateContract }

func (f *fakeAnswerAggregate) ApplyBindingWrites(_ context.Context, in domainagg.ApplyBindingWritesInput) (domainagg.ApplyBindingWritesResult, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return domainagg.ApplyBindingWritesResult{}, f.err
	}
	return domainagg.ApplyBindingWritesResult{TechID: in.TechID, RowVersions: domainagg.RowVersions{types.RootTechnology: 1}}, nil
}

func TestFormAnswerServiceWriteDelegatesToAggregate(t *testing.T) {
	fake := &fakeAnswerAggregate{}
	svc := NewFormAnswerService(nil, logger.Nop(), repos.Set{}, fake, nil, answers.PolicyAny, nil)

	out, err := svc.Write(context.Background(), WriteRequest{
		TechID:      "T-1",
		Responses:   map[string]any{"overview": "x"},
		RowVersions: domainagg.RowVersions{types.RootTechnology: 0},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("aggregate calls: want=1 got=%d", fake.calls)
	}
	if fake.last.Actor != "anonymous" {
		t.Fatalf("actor: want=%q got=%q", "anonymous", fake.last.Actor)
	}
	if v, ok := fake.last.ExpectedRowVersions.Lookup(types.RootTechnology); !ok || v != 0 {
		t.Fatalf("expected versions not passed through: %v", fake.last.ExpectedRowVersions)
	}
	if out.StampedKeys == nil || out.RowVersions[types.RootTechnology] != 1 {
		t.Fatalf("response: %+v", out)
	}
}

func TestFormAnswerServiceWritePassesLockErrorsThrough(t *testing.T) {
	lockErr := domainagg.NewError(domainagg.CodeConflict, "op", "stale", &domainagg.OptimisticLockError{Table: "technology"})
	svc := NewFormAnswerService(nil, logger.Nop(), repos.Set{}, &fakeAnswerAggregate{err: lockErr}, nil, answers.PolicyAny, nil)

	_, err := svc.Write(context.Background(), WriteRequest{TechID: "T-1"})
	if !domainagg.IsOptimisticLock(err) {
		t.Fatalf("want optimistic lock error, got %v", err)
	}
}

type formsFixture struct {
	ctx   context.Context
	tx    *gorm.DB
	log   *logger.Logger
	bank  QuestionBankService
	forms FormAnswerService
	set   repos.Set
	tmpl  *types.FormTemplate
	tech  *types.Technology
	key   string
}

func newFormsFixture(t *testing.T, policy answers.StalenessPolicy) *formsFixture {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	ctx := context.Background()
	set := repos.NewSet(tx, log)

	base := aggregates.BaseDeps{
		DB:       tx,
		Log:      log,
		Runner:   aggregates.NewGormTxRunner(tx),
		CASGuard: aggregates.NewCASGuard(tx),
	}
	bank := NewQuestionBankService(log, set.Questions, set.Revisions,
		aggregates.NewQuestionRevisionAggregate(aggregates.QuestionRevisionAggregateDeps{
			Base:      base,
			Questions: set.Questions,
			Revisions: set.Revisions,
		}))
	answerAgg := aggregates.NewAnswerAggregate(aggregates.AnswerAggregateDeps{
		Base:       base,
		Templates:  set.Templates,
		Technology: set.Technology,
	})
	subAgg := aggregates.NewSubmissionAggregate(aggregates.SubmissionAggregateDeps{
		Base:        base,
		Templates:   set.Templates,
		Technology:  set.Technology,
		Submissions: set.Submissions,
		Responses:   set.Responses,
	})

	f := &formsFixture{
		ctx:   ctx,
		tx:    tx,
		log:   log,
		bank:  bank,
		forms: NewFormAnswerService(tx, log, set, answerAgg, subAgg, policy, nil),
		set:   set,
		key:   repotest.Unique("overview"),
	}
	if _, err := bank.CreateQuestion(ctx, CreateQuestionRequest{
		Key:         f.key,
		BindingPath: "triageStage.technologyOverview",
		Label:       "Technology overview",
	}); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	f.tmpl = repotest.SeedTemplate(t, ctx, tx, false,
		repotest.Field{Code: "overview", Type: types.FieldLongText, Key: f.key},
		repotest.Field{Code: "notes", Type: types.FieldLongText},
	)
	f.tech = repotest.SeedTechnology(t, ctx, tx, repotest.Unique("TECH"), true)
	return f
}

func (f *formsFixture) hydrate(t *testing.T) answers.HydrateResult {
	t.Helper()
	res, err := f.forms.Hydrate(f.ctx, HydrateRequest{TemplateID: &f.tmpl.ID, TechID: f.tech.TechID})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	return res
}

func TestFormAnswersRevisionMakesAnswerStale(t *testing.T) {
	f := newFormsFixture(t, answers.PolicyAny)

	before := f.hydrate(t)
	if md := before.AnswerMetadata["overview"]; md.Status != answers.StatusUnknown {
		t.Fatalf("before write: want=UNKNOWN got=%s", md.Status)
	}

	if _, err := f.forms.Write(f.ctx, WriteRequest{
		TemplateID:  &f.tmpl.ID,
		TechID:      f.tech.TechID,
		Responses:   map[string]any{"overview": "x", "notes": "local"},
		RowVersions: before.RowVersions,
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fresh := f.hydrate(t)
	if md := fresh.AnswerMetadata["overview"]; md.Status != answers.StatusFresh {
		t.Fatalf("after write: want=FRESH got=%s", md.Status)
	}
	if fresh.InitialResponses["overview"] != "x" {
		t.Fatalf("prefill: got=%v", fresh.InitialResponses["overview"])
	}
	if _, ok := fresh.AnswerMetadata["notes"]; ok {
		t.Fatalf("form-local field must not carry metadata")
	}

	rev, err := f.bank.ReviseQuestion(f.ctx, ReviseQuestionRequest{Key: f.key, Label: "Overview (reworded)", Significant: true})
	if err != nil {
		t.Fatalf("ReviseQuestion: %v", err)
	}
	if rev.VersionNumber != 2 {
		t.Fatalf("revision number: want=2 got=%d", rev.VersionNumber)
	}
	current, err := f.bank.CurrentRevision(f.ctx, f.key)
	if err != nil || current != rev.RevisionID {
		t.Fatalf("CurrentRevision: want=%s got=%s err=%v", rev.RevisionID, current, err)
	}

	stale := f.hydrate(t)
	md := stale.AnswerMetadata["overview"]
	if md.Status != answers.StatusStale {
		t.Fatalf("after revision: want=STALE got=%s", md.Status)
	}
	if md.CurrentRevisionID != rev.RevisionID.String() || md.SavedRevisionID == md.CurrentRevisionID {
		t.Fatalf("revision ids: %+v", md)
	}
}

func TestFormAnswersCosmeticRevisionUnderSignificantPolicy(t *testing.T) {
	f := newFormsFixture(t, answers.PolicySignificant)
	before := f.hydrate(t)
	if _, err := f.forms.Write(f.ctx, WriteRequest{
		TemplateID:  &f.tmpl.ID,
		TechID:      f.tech.TechID,
		Responses:   map[string]any{"overview": "x"},
		RowVersions: before.RowVersions,
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.bank.ReviseQuestion(f.ctx, ReviseQuestionRequest{Key: f.key, Label: "Overview.", ChangeReason: "typo"}); err != nil {
		t.Fatalf("ReviseQuestion: %v", err)
	}
	if md := f.hydrate(t).AnswerMetadata["overview"]; md.Status != answers.StatusFresh {
		t.Fatalf("cosmetic revision: want=FRESH got=%s", md.Status)
	}
}

func TestFormAnswersSubmissionRoundTrip(t *testing.T) {
	f := newFormsFixture(t, answers.PolicyAny)

	saved, err := f.forms.SaveSubmission(f.ctx, SaveSubmissionRequest{
		TemplateID: &f.tmpl.ID,
		TechID:     f.tech.TechID,
		Responses:  map[string]any{"overview": "draft", "notes": "n"},
	})
	if err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}
	view, err := f.forms.LoadSubmission(f.ctx, saved.SubmissionID)
	if err != nil {
		t.Fatalf("LoadSubmission: %v", err)
	}
	if view.Responses["overview"] != "draft" || view.Responses["notes"] != "n" {
		t.Fatalf("responses: %+v", view.Responses)
	}
	if view.TechnologyID == nil || *view.TechnologyID != f.tech.ID {
		t.Fatalf("technology link: %+v", view.TechnologyID)
	}
	if md := view.AnswerMetadata["overview"]; md.Status != answers.StatusFresh {
		t.Fatalf("submission metadata: want=FRESH got=%s", md.Status)
	}

	if _, err := f.bank.ReviseQuestion(f.ctx, ReviseQuestionRequest{Key: f.key, Label: "New overview", Significant: true}); err != nil {
		t.Fatalf("ReviseQuestion: %v", err)
	}
	view, err = f.forms.LoadSubmission(f.ctx, saved.SubmissionID)
	if err != nil {
		t.Fatalf("LoadSubmission: %v", err)
	}
	if md := view.AnswerMetadata["overview"]; md.Status != answers.StatusStale {
		t.Fatalf("after revision: want=STALE got=%s", md.Status)
	}

	_, err = f.forms.LoadSubmission(f.ctx, uuid.New())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("unknown submission: want not found, got %v", err)
	}
}

func TestQuestionBankUnknownKey(t *testing.T) {
	f := newFormsFixture(t, answers.PolicyAny)
	if _, err := f.bank.CurrentRevision(f.ctx, "no-such-question"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("CurrentRevision: want not found, got %v", err)
	}
	if _, err := f.bank.ListRevisions(f.ctx, "no-such-question"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("ListRevisions: want not found, got %v", err)
	}
	revs, err := f.bank.ListRevisions(f.ctx, f.key)
	if err != nil || len(revs) != 1 || revs[0].VersionNumber != 1 {
		t.Fatalf("ListRevisions: revs=%d err=%v", len(revs), err)
	}
}

func TestFormAnswersFailedCommitLeavesAnswersUntouched(t *testing.T) {
	f := newFormsFixture(t, answers.PolicyAny)
	before := f.hydrate(t)

	hooks := &aggtest.HooksRecorder{}
	runner := &aggtest.FaultyTxRunner{
		Inner:      aggregates.NewGormTxRunner(f.tx),
		FailCommit: aggregates.RetryableError("connection reset during commit"),
	}
	faulty := aggregates.NewAnswerAggregate(aggregates.AnswerAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:       f.tx,
			Log:      f.log,
			Runner:   runner,
			Hooks:    hooks,
			CASGuard: aggregates.NewCASGuard(f.tx),
		},
		Templates:  f.set.Templates,
		Technology: f.set.Technology,
	})
	svc := NewFormAnswerService(f.tx, f.log, f.set, faulty, nil, answers.PolicyAny, nil)

	_, err := svc.Write(f.ctx, WriteRequest{
		TemplateID:  &f.tmpl.ID,
		TechID:      f.tech.TechID,
		Responses:   map[string]any{"overview": "lost"},
		RowVersions: before.RowVersions,
	})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("want retryable error, got %v", err)
	}
	if runner.Rollbacks != 1 || runner.Commits != 0 {
		t.Fatalf("runner: rollback=%d commit=%d", runner.Rollbacks, runner.Commits)
	}
	if len(hooks.Retries) != 1 || hooks.LastStatus("Forms.Answer.ApplyBindingWrites") != string(domainagg.CodeRetryable) {
		t.Fatalf("hooks: statuses=%v retries=%v", hooks.StatusCounts(), hooks.Retries)
	}

	after := f.hydrate(t)
	if md := after.AnswerMetadata["overview"]; md.Status != answers.StatusUnknown {
		t.Fatalf("rolled back write left metadata: %+v", md)
	}
	if v, ok := after.InitialResponses["overview"]; ok && v != "" {
		t.Fatalf("rolled back write left value %v", v)
	}
	if after.RowVersions[types.RootTriageStage] != before.RowVersions[types.RootTriageStage] {
		t.Fatalf("row version moved: before=%v after=%v", before.RowVersions, after.RowVersions)
	}
}
