package answers

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type TemplateSource interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FormTemplate, error)
	GetActive(dbc dbctx.Context) (*types.FormTemplate, error)
}

type SubjectSource interface {
	GetByTechID(dbc dbctx.Context, techID string) (*types.Technology, error)
}

type RevisionSource interface {
	ListByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) ([]*types.QuestionRevision, error)
}

// Observer receives hydration signals; observability.Metrics satisfies it.
type Observer interface {
	IncHydration(outcome string)
	ObserveAnswerStatuses(counts map[string]int)
	IncMalformedMetadata(root string)
}

type HydratorDeps struct {
	Log       *logger.Logger
	Templates TemplateSource
	Subjects  SubjectSource
	// Revisions is only read under PolicySignificant.
	Revisions RevisionSource
	Policy    StalenessPolicy
	Observer  Observer
}

type Hydrator struct {
	deps HydratorDeps
	log  *logger.Logger
}

func NewHydrator(deps HydratorDeps) *Hydrator {
	return &Hydrator{deps: deps, log: deps.Log.With("component", "Hydrator")}
}

type HydrateInput struct {
	TemplateID *uuid.UUID
	TechID     string
}

type TechnologyContext struct {
	Exists            bool       `json:"exists"`
	TechnologyID      *uuid.UUID `json:"technologyId,omitempty"`
	TechID            string     `json:"techId,omitempty"`
	TechnologyName    string     `json:"technologyName,omitempty"`
	CurrentStage      string     `json:"currentStage,omitempty"`
	HasTriageStage    bool       `json:"hasTriageStage"`
	HasViabilityStage bool       `json:"hasViabilityStage"`
}

type HydrateResult struct {
	TemplateID          uuid.UUID                   `json:"templateId"`
	InitialResponses    map[string]any              `json:"initialResponses"`
	InitialRepeatGroups map[string][]map[string]any `json:"initialRepeatGroups"`
	AnswerMetadata      map[string]AnswerMetadata   `json:"answerMetadata"`
	TechnologyContext   TechnologyContext           `json:"technologyContext"`
	RowVersions         domainagg.RowVersions       `json:"rowVersions"`
	Bindings            map[string]BindingMetadata  `json:"bindings"`
	// DegradedScopes lists roots whose bag could not be parsed.
	DegradedScopes []string `json:"degradedScopes,omitempty"`
}

func emptyResult(tmplID uuid.UUID, bindings map[string]BindingMetadata) HydrateResult {
	return HydrateResult{
		TemplateID:          tmplID,
		InitialResponses:    map[string]any{},
		InitialRepeatGroups: map[string][]map[string]any{},
		AnswerMetadata:      map[string]AnswerMetadata{},
		RowVersions:         domainagg.RowVersions{},
		Bindings:            bindings,
	}
}

// Hydrate builds the prefill and status payload for a template and,
// optionally, an existing technology. It never writes.
func (h *Hydrator) Hydrate(ctx context.Context, in HydrateInput) (HydrateResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	techID := strings.TrimSpace(in.TechID)

	var (
		tmpl *types.FormTemplate
		tech *types.Technology
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tmpl, err = loadTemplate(dbctx.Context{Ctx: gctx}, h.deps.Templates, in.TemplateID)
		return err
	})
	if techID != "" {
		g.Go(func() error {
			var err error
			tech, err = h.deps.Subjects.GetByTechID(dbctx.Context{Ctx: gctx}, techID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		h.observe("error")
		return HydrateResult{}, err
	}

	bindings := CollectBindingMetadata(tmpl)
	out := emptyResult(tmpl.ID, bindings)
	if techID == "" {
		h.observe("template_only")
		return out, nil
	}
	if tech == nil {
		h.log.Debug("hydrate: technology not found, nothing to prefill", "tech_id", techID)
		h.observe("new_subject")
		return out, nil
	}

	evaluator, err := h.evaluator(dbc, bindings)
	if err != nil {
		h.observe("error")
		return HydrateResult{}, err
	}

	values := SubjectValues{Tech: tech}
	meta := ScopedMetadata{}
	for _, root := range types.Roots {
		rec := values.Record(root)
		if rec == nil {
			continue
		}
		bag, perr := ParseExtendedData(extendedDataOf(rec), root, h.log)
		if perr != nil {
			h.log.Warn("answer metadata unreadable, scope degraded to UNKNOWN", "tech_id", techID, "scope", root, "error", perr.Error())
			out.DegradedScopes = append(out.DegradedScopes, root)
			if h.deps.Observer != nil {
				h.deps.Observer.IncMalformedMetadata(root)
			}
		}
		meta[root] = bag
		out.RowVersions[root] = rowVersionOf(rec)
	}

	codes := make([]string, 0, len(bindings))
	for code := range bindings {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		b := bindings[code]
		if v, ok := ValueFor(b, values, meta); ok {
			if b.Repeatable() {
				if rows, ok := NormalizeRows(v); ok {
					out.InitialRepeatGroups[code] = rows
				}
			} else if sv, ok := NormalizeScalar(b.FieldType, v); ok {
				out.InitialResponses[code] = sv
			}
		}
		out.AnswerMetadata[code] = evaluator.Metadata(b, meta.Entry(b.Root, b.DictionaryKey))
	}

	id := tech.ID
	out.TechnologyContext = TechnologyContext{
		Exists:            true,
		TechnologyID:      &id,
		TechID:            tech.TechID,
		TechnologyName:    tech.TechnologyName,
		CurrentStage:      tech.CurrentStage,
		HasTriageStage:    tech.TriageStage != nil,
		HasViabilityStage: tech.ViabilityStage != nil,
	}
	h.observe("prefilled")
	if h.deps.Observer != nil {
		h.deps.Observer.ObserveAnswerStatuses(CountStatuses(out.AnswerMetadata))
	}
	return out, nil
}

func (h *Hydrator) observe(outcome string) {
	if h.deps.Observer != nil {
		h.deps.Observer.IncHydration(outcome)
	}
}

func (h *Hydrator) evaluator(dbc dbctx.Context, bindings map[string]BindingMetadata) (StatusEvaluator, error) {
	return BuildEvaluator(dbc, h.deps.Policy, h.deps.Revisions, bindings)
}

// BuildEvaluator loads revision history when the policy needs it.
func BuildEvaluator(dbc dbctx.Context, policy StalenessPolicy, revisions RevisionSource, bindings map[string]BindingMetadata) (StatusEvaluator, error) {
	ev := StatusEvaluator{Policy: policy}
	if policy != PolicySignificant || revisions == nil || len(bindings) == 0 {
		return ev, nil
	}
	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(bindings))
	for _, b := range bindings {
		if !seen[b.QuestionID] {
			seen[b.QuestionID] = true
			ids = append(ids, b.QuestionID)
		}
	}
	revs, err := revisions.ListByQuestionIDs(dbc, ids)
	if err != nil {
		return ev, err
	}
	ev.History = NewRevisionTimeline(revs)
	return ev, nil
}

// loadTemplate returns the requested template, or the active one when id is nil.
func loadTemplate(dbc dbctx.Context, src TemplateSource, id *uuid.UUID) (*types.FormTemplate, error) {
	if id != nil && *id != uuid.Nil {
		tmpl, err := src.GetByID(dbc, *id)
		if err != nil {
			return nil, err
		}
		if tmpl == nil {
			return nil, errors.NotFoundf("form template %s not found", id.String())
		}
		return tmpl, nil
	}
	tmpl, err := src.GetActive(dbc)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, errors.NotFoundf("no active form template")
	}
	return tmpl, nil
}

// LoadTemplate is loadTemplate for callers outside the package.
func LoadTemplate(dbc dbctx.Context, src TemplateSource, id *uuid.UUID) (*types.FormTemplate, error) {
	return loadTemplate(dbc, src, id)
}

func extendedDataOf(rec any) []byte {
	switch r := rec.(type) {
	case *types.Technology:
		return r.ExtendedData
	case *types.TriageStage:
		return r.ExtendedData
	case *types.ViabilityStage:
		return r.ExtendedData
	default:
		return nil
	}
}

func rowVersionOf(rec any) int {
	switch r := rec.(type) {
	case *types.Technology:
		return r.RowVersion
	case *types.TriageStage:
		return r.RowVersion
	case *types.ViabilityStage:
		return r.RowVersion
	default:
		return 0
	}
}
