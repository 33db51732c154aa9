package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/techform-backend/internal/data/repos"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type HydrateRequest struct {
	TemplateID *uuid.UUID
	TechID     string
}

type WriteRequest struct {
	TemplateID                *uuid.UUID                  `json:"templateId,omitempty"`
	TechID                    string                      `json:"techId,omitempty"`
	Responses                 map[string]any              `json:"responses"`
	RepeatGroups              map[string][]map[string]any `json:"repeatGroups"`
	RowVersions               domainagg.RowVersions       `json:"rowVersions,omitempty"`
	AllowCreateWhenIncomplete bool                        `json:"allowCreateWhenIncomplete,omitempty"`
	Actor                     string                      `json:"-"`
}

type WriteResponse struct {
	TechnologyID uuid.UUID             `json:"technologyId"`
	TechID       string                `json:"techId"`
	Created      bool                  `json:"created"`
	RowVersions  domainagg.RowVersions `json:"rowVersions"`
	StampedKeys  []string              `json:"stampedKeys"`
}

type SaveSubmissionRequest struct {
	SubmissionID              *uuid.UUID                  `json:"submissionId,omitempty"`
	TemplateID                *uuid.UUID                  `json:"templateId,omitempty"`
	TechID                    string                      `json:"techId,omitempty"`
	Responses                 map[string]any              `json:"responses"`
	RepeatGroups              map[string][]map[string]any `json:"repeatGroups"`
	ExpectedVersion           *int                        `json:"expectedVersion,omitempty"`
	Submit                    bool                        `json:"submit,omitempty"`
	ApplyBindings             bool                        `json:"applyBindings,omitempty"`
	RowVersions               domainagg.RowVersions       `json:"rowVersions,omitempty"`
	AllowCreateWhenIncomplete bool                        `json:"allowCreateWhenIncomplete,omitempty"`
	Actor                     string                      `json:"-"`
}

type SaveSubmissionResponse struct {
	SubmissionID     uuid.UUID      `json:"submissionId"`
	Status           string         `json:"status"`
	Generation       int            `json:"generation"`
	RowVersion       int            `json:"rowVersion"`
	WrittenResponses int            `json:"writtenResponses"`
	WrittenGroupRows int            `json:"writtenGroupRows"`
	Binding          *WriteResponse `json:"binding,omitempty"`
}

// SubmissionView is the latest generation of a submission with rebuilt statuses.
type SubmissionView struct {
	ID             uuid.UUID                         `json:"id"`
	TemplateID     uuid.UUID                         `json:"templateId"`
	TechnologyID   *uuid.UUID                        `json:"technologyId,omitempty"`
	Status         string                            `json:"status"`
	Generation     int                               `json:"generation"`
	RowVersion     int                               `json:"rowVersion"`
	SubmittedAt    *time.Time                        `json:"submittedAt,omitempty"`
	Responses      map[string]any                    `json:"responses"`
	RepeatGroups   map[string][]map[string]any       `json:"repeatGroups"`
	AnswerMetadata map[string]answers.AnswerMetadata `json:"answerMetadata"`
}

type FormAnswerService interface {
	Hydrate(ctx context.Context, req HydrateRequest) (answers.HydrateResult, error)
	Write(ctx context.Context, req WriteRequest) (WriteResponse, error)
	RebuildMetadataFromSubmission(
		ctx context.Context,
		templateID *uuid.UUID,
		responses []answers.ResponseRecord,
		rows []answers.GroupRowRecord,
		answeredAt time.Time,
	) (map[string]answers.AnswerMetadata, error)
	SaveSubmission(ctx context.Context, req SaveSubmissionRequest) (SaveSubmissionResponse, error)
	LoadSubmission(ctx context.Context, id uuid.UUID) (*SubmissionView, error)
}

type formAnswerService struct {
	db       *gorm.DB
	log      *logger.Logger
	repos    repos.Set
	hydrator *answers.Hydrator
	answers  domainagg.AnswerAggregate
	subs     domainagg.SubmissionAggregate
	policy   answers.StalenessPolicy
}

func NewFormAnswerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	set repos.Set,
	answerAgg domainagg.AnswerAggregate,
	submissionAgg domainagg.SubmissionAggregate,
	policy answers.StalenessPolicy,
	observer answers.Observer,
) FormAnswerService {
	log := baseLog.With("service", "FormAnswerService")
	return &formAnswerService{
		db:    db,
		log:   log,
		repos: set,
		hydrator: answers.NewHydrator(answers.HydratorDeps{
			Log:       log,
			Templates: set.Templates,
			Subjects:  set.Technology,
			Revisions: set.Revisions,
			Policy:    policy,
			Observer:  observer,
		}),
		answers: answerAgg,
		subs:    submissionAgg,
		policy:  policy,
	}
}

func (s *formAnswerService) Hydrate(ctx context.Context, req HydrateRequest) (out answers.HydrateResult, err error) {
	ctx, span := startSpan(ctx, "FormAnswerService.Hydrate", attribute.String("tech_id", req.TechID))
	defer func() { endSpan(span, err) }()

	out, err = s.hydrator.Hydrate(ctx, answers.HydrateInput{TemplateID: req.TemplateID, TechID: req.TechID})
	if err != nil {
		return out, err
	}
	if len(out.DegradedScopes) > 0 {
		span.SetAttributes(attribute.StringSlice("degraded_scopes", out.DegradedScopes))
	}
	return out, nil
}

func (s *formAnswerService) Write(ctx context.Context, req WriteRequest) (out WriteResponse, err error) {
	if s == nil || s.answers == nil {
		return out, fmt.Errorf("form answer service not configured")
	}
	ctx, span := startSpan(ctx, "FormAnswerService.Write", attribute.String("tech_id", req.TechID))
	defer func() { endSpan(span, err) }()

	res, err := s.answers.ApplyBindingWrites(ctx, domainagg.ApplyBindingWritesInput{
		TemplateID:                req.TemplateID,
		TechID:                    req.TechID,
		Responses:                 req.Responses,
		RepeatGroups:              req.RepeatGroups,
		ExpectedRowVersions:       req.RowVersions,
		AllowCreateWhenIncomplete: req.AllowCreateWhenIncomplete,
		Actor:                     actorOrAnonymous(req.Actor),
	})
	if err != nil {
		if domainagg.IsOptimisticLock(err) {
			s.log.Info("answer write lost optimistic lock", "tech_id", req.TechID, "error", err)
		}
		return out, err
	}
	s.log.Debug("answers written",
		"tech_id", res.TechID,
		"created", res.Created,
		"stamped", len(res.StampedKeys),
	)
	return writeResponse(res), nil
}

func writeResponse(res domainagg.ApplyBindingWritesResult) WriteResponse {
	keys := res.StampedKeys
	if keys == nil {
		keys = []string{}
	}
	return WriteResponse{
		TechnologyID: res.TechnologyID,
		TechID:       res.TechID,
		Created:      res.Created,
		RowVersions:  res.RowVersions,
		StampedKeys:  keys,
	}
}

func (s *formAnswerService) RebuildMetadataFromSubmission(
	ctx context.Context,
	templateID *uuid.UUID,
	responses []answers.ResponseRecord,
	rows []answers.GroupRowRecord,
	answeredAt time.Time,
) (out map[string]answers.AnswerMetadata, err error) {
	ctx, span := startSpan(ctx, "FormAnswerService.RebuildMetadataFromSubmission")
	defer func() { endSpan(span, err) }()

	dbc := dbctx.Context{Ctx: ctx}
	tmpl, err := answers.LoadTemplate(dbc, s.repos.Templates, templateID)
	if err != nil {
		return nil, err
	}
	bindings := answers.CollectBindingMetadata(tmpl)
	eval, err := answers.BuildEvaluator(dbc, s.policy, s.repos.Revisions, bindings)
	if err != nil {
		return nil, err
	}
	return answers.BuildMetadataFromSubmission(bindings, responses, rows, answeredAt, eval), nil
}

func (s *formAnswerService) SaveSubmission(ctx context.Context, req SaveSubmissionRequest) (out SaveSubmissionResponse, err error) {
	if s == nil || s.subs == nil {
		return out, fmt.Errorf("form answer service not configured")
	}
	ctx, span := startSpan(ctx, "FormAnswerService.SaveSubmission",
		attribute.Bool("submit", req.Submit),
		attribute.Bool("apply_bindings", req.ApplyBindings),
	)
	defer func() { endSpan(span, err) }()

	res, err := s.subs.SaveSubmission(ctx, domainagg.SaveSubmissionInput{
		SubmissionID:              req.SubmissionID,
		TemplateID:                req.TemplateID,
		TechID:                    req.TechID,
		Responses:                 req.Responses,
		RepeatGroups:              req.RepeatGroups,
		ExpectedVersion:           req.ExpectedVersion,
		Submit:                    req.Submit,
		ApplyBindings:             req.ApplyBindings,
		ExpectedRowVersions:       req.RowVersions,
		AllowCreateWhenIncomplete: req.AllowCreateWhenIncomplete,
		Actor:                     actorOrAnonymous(req.Actor),
	})
	if err != nil {
		return out, err
	}
	out = SaveSubmissionResponse{
		SubmissionID:     res.SubmissionID,
		Status:           res.Status,
		Generation:       res.Generation,
		RowVersion:       res.RowVersion,
		WrittenResponses: res.WrittenResponses,
		WrittenGroupRows: res.WrittenGroupRows,
	}
	if res.Binding != nil {
		b := writeResponse(*res.Binding)
		out.Binding = &b
	}
	span.SetAttributes(attribute.String("submission_id", res.SubmissionID.String()), attribute.Int("generation", res.Generation))
	return out, nil
}

func (s *formAnswerService) LoadSubmission(ctx context.Context, id uuid.UUID) (out *SubmissionView, err error) {
	ctx, span := startSpan(ctx, "FormAnswerService.LoadSubmission", attribute.String("submission_id", id.String()))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return nil, errors.InvalidArgumentf("missing submission id")
	}
	dbc := dbctx.Context{Ctx: ctx}
	sub, err := s.repos.Submissions.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errors.NotFoundf("submission %s not found", id)
	}

	latest, err := s.repos.Responses.LatestResponses(dbc, sub.ID)
	if err != nil {
		return nil, err
	}
	latestRows, err := s.repos.Responses.LatestGroupRows(dbc, sub.ID)
	if err != nil {
		return nil, err
	}

	view := &SubmissionView{
		ID:           sub.ID,
		TemplateID:   sub.TemplateID,
		TechnologyID: sub.TechnologyID,
		Status:       sub.Status,
		Generation:   sub.Generation,
		RowVersion:   sub.RowVersion,
		SubmittedAt:  sub.SubmittedAt,
		Responses:    map[string]any{},
		RepeatGroups: map[string][]map[string]any{},
	}
	records := make([]answers.ResponseRecord, 0, len(latest))
	for _, r := range latest {
		rec := answers.ResponseRecordFrom(r)
		records = append(records, rec)
		view.Responses[rec.QuestionCode] = rec.Value
	}
	rows := make([]answers.GroupRowRecord, 0, len(latestRows))
	for _, r := range latestRows {
		rows = append(rows, answers.GroupRowRecordFrom(r))
	}
	for code, bucket := range answers.GroupRows(rows) {
		for _, r := range bucket {
			view.RepeatGroups[code] = append(view.RepeatGroups[code], r.Data)
		}
	}

	answeredAt := sub.UpdatedAt
	if sub.SubmittedAt != nil {
		answeredAt = *sub.SubmittedAt
	}
	tid := sub.TemplateID
	md, err := s.RebuildMetadataFromSubmission(ctx, &tid, records, rows, answeredAt)
	if err != nil {
		return nil, err
	}
	view.AnswerMetadata = md
	return view, nil
}

// actorOrAnonymous is the audit name recorded for unauthenticated callers.
func actorOrAnonymous(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return "anonymous"
}
