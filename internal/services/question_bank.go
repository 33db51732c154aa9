package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/techform-backend/internal/data/repos"
	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type CreateQuestionRequest struct {
	Key         string          `json:"key"`
	BindingPath string          `json:"bindingPath"`
	DataSource  string          `json:"dataSource,omitempty"`
	Label       string          `json:"label"`
	HelpText    string          `json:"helpText,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
	Validation  json.RawMessage `json:"validation,omitempty"`
	Actor       string          `json:"-"`
}

type ReviseQuestionRequest struct {
	Key             string          `json:"-"`
	Label           string          `json:"label"`
	HelpText        string          `json:"helpText,omitempty"`
	Options         json.RawMessage `json:"options,omitempty"`
	Validation      json.RawMessage `json:"validation,omitempty"`
	Significant     bool            `json:"significant"`
	ChangeReason    string          `json:"changeReason,omitempty"`
	ExpectedVersion *int            `json:"expectedVersion,omitempty"`
	Actor           string          `json:"-"`
}

type RevisionRef struct {
	QuestionID    uuid.UUID `json:"questionId"`
	RevisionID    uuid.UUID `json:"revisionId"`
	VersionNumber int       `json:"versionNumber"`
	Significant   bool      `json:"significant"`
}

// QuestionBankService manages the question dictionary and its revision history.
type QuestionBankService interface {
	CreateQuestion(ctx context.Context, req CreateQuestionRequest) (RevisionRef, error)
	ReviseQuestion(ctx context.Context, req ReviseQuestionRequest) (RevisionRef, error)
	CurrentRevision(ctx context.Context, key string) (uuid.UUID, error)
	ListRevisions(ctx context.Context, key string) ([]*types.QuestionRevision, error)
	GetQuestion(ctx context.Context, key string) (*types.Question, error)
}

type questionBankService struct {
	log       *logger.Logger
	questions repos.QuestionRepo
	revisions repos.QuestionRevisionRepo
	agg       domainagg.QuestionRevisionAggregate
}

func NewQuestionBankService(
	baseLog *logger.Logger,
	questions repos.QuestionRepo,
	revisions repos.QuestionRevisionRepo,
	agg domainagg.QuestionRevisionAggregate,
) QuestionBankService {
	return &questionBankService{
		log:       baseLog.With("service", "QuestionBankService"),
		questions: questions,
		revisions: revisions,
		agg:       agg,
	}
}

func (s *questionBankService) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (out RevisionRef, err error) {
	if s == nil || s.agg == nil {
		return out, fmt.Errorf("question bank service not configured")
	}
	ctx, span := startSpan(ctx, "QuestionBankService.CreateQuestion", attribute.String("question_key", req.Key))
	defer func() { endSpan(span, err) }()

	res, err := s.agg.CreateQuestion(ctx, domainagg.CreateQuestionInput{
		Key:         req.Key,
		BindingPath: req.BindingPath,
		DataSource:  req.DataSource,
		Content: domainagg.RevisionContent{
			Label:      req.Label,
			HelpText:   req.HelpText,
			Options:    req.Options,
			Validation: req.Validation,
		},
		CreatedBy: actorOrAnonymous(req.Actor),
	})
	if err != nil {
		return out, err
	}
	s.log.Info("question created", "question_key", req.Key, "binding_path", req.BindingPath)
	return RevisionRef{
		QuestionID:    res.QuestionID,
		RevisionID:    res.RevisionID,
		VersionNumber: res.VersionNumber,
		Significant:   true,
	}, nil
}

func (s *questionBankService) ReviseQuestion(ctx context.Context, req ReviseQuestionRequest) (out RevisionRef, err error) {
	if s == nil || s.agg == nil {
		return out, fmt.Errorf("question bank service not configured")
	}
	ctx, span := startSpan(ctx, "QuestionBankService.ReviseQuestion",
		attribute.String("question_key", req.Key),
		attribute.Bool("significant", req.Significant),
	)
	defer func() { endSpan(span, err) }()

	res, err := s.agg.CreateRevision(ctx, domainagg.CreateRevisionInput{
		QuestionKey: req.Key,
		Content: domainagg.RevisionContent{
			Label:      req.Label,
			HelpText:   req.HelpText,
			Options:    req.Options,
			Validation: req.Validation,
		},
		Significant:             req.Significant,
		ChangeReason:            req.ChangeReason,
		CreatedBy:               actorOrAnonymous(req.Actor),
		ExpectedQuestionVersion: req.ExpectedVersion,
	})
	if err != nil {
		return out, err
	}
	s.log.Info("question revised",
		"question_key", req.Key,
		"version", res.VersionNumber,
		"significant", res.Significant,
	)
	return RevisionRef{
		QuestionID:    res.QuestionID,
		RevisionID:    res.RevisionID,
		VersionNumber: res.VersionNumber,
		Significant:   res.Significant,
	}, nil
}

func (s *questionBankService) GetQuestion(ctx context.Context, key string) (*types.Question, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.InvalidArgumentf("missing question key")
	}
	q, err := s.questions.GetByKey(dbctx.Context{Ctx: ctx}, key)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errors.NotFoundf("question %q not found", key)
	}
	return q, nil
}

// CurrentRevision returns the revision new answers to key are recorded against.
func (s *questionBankService) CurrentRevision(ctx context.Context, key string) (uuid.UUID, error) {
	q, err := s.GetQuestion(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}
	if q.CurrentRevisionID == nil {
		return uuid.Nil, errors.NotFoundf("question %q has no revision", key)
	}
	return *q.CurrentRevisionID, nil
}

func (s *questionBankService) ListRevisions(ctx context.Context, key string) ([]*types.QuestionRevision, error) {
	if _, err := s.GetQuestion(ctx, key); err != nil {
		return nil, err
	}
	return s.revisions.ListByQuestionKey(dbctx.Context{Ctx: ctx}, strings.TrimSpace(key))
}
