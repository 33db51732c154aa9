package aggregates

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/techform-backend/internal/data/repos"
	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
)

type SubmissionAggregateDeps struct {
	Base BaseDeps

	Templates   repos.FormTemplateRepo
	Technology  repos.TechnologyRepo
	Submissions repos.FormSubmissionRepo
	Responses   repos.ResponseRepo

	Observer answers.Observer
	Clock    func() time.Time
}

type submissionAggregate struct {
	deps   SubmissionAggregateDeps
	binder *answerAggregate
}

func NewSubmissionAggregate(deps SubmissionAggregateDeps) domainagg.SubmissionAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	binder := &answerAggregate{deps: AnswerAggregateDeps{
		Base:       deps.Base,
		Templates:  deps.Templates,
		Technology: deps.Technology,
		Observer:   deps.Observer,
		Clock:      deps.Clock,
	}}
	return &submissionAggregate{deps: deps, binder: binder}
}

func (a *submissionAggregate) Contract() domainagg.Contract {
	return domainagg.SubmissionAggregateContract
}

// SaveSubmission appends a generation of changed answers to a draft and, when
// asked, applies binding writes and submits, all in one transaction.
func (a *submissionAggregate) SaveSubmission(ctx context.Context, in domainagg.SaveSubmissionInput) (domainagg.SaveSubmissionResult, error) {
	const op = "Forms.Submission.SaveSubmission"
	var out domainagg.SaveSubmissionResult
	if a.deps.Templates == nil || a.deps.Submissions == nil || a.deps.Responses == nil || a.deps.Technology == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "submission aggregate repos not configured", nil)
	}
	existing := in.SubmissionID != nil && *in.SubmissionID != uuid.Nil
	if existing && in.ExpectedVersion == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "expected version required to update a submission", nil)
	}

	savedAt := in.SavedAt.UTC()
	if in.SavedAt.IsZero() {
		savedAt = a.deps.Clock().UTC()
	}
	actor := strings.TrimSpace(in.Actor)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		var sub *types.FormSubmission
		templateID := in.TemplateID
		if existing {
			loaded, err := a.deps.Submissions.GetByID(dbc, *in.SubmissionID)
			if err != nil {
				return err
			}
			if loaded == nil {
				return domainagg.NewError(domainagg.CodeNotFound, op, "submission "+in.SubmissionID.String()+" not found", nil)
			}
			if loaded.Status != types.SubmissionStatusDraft {
				return ConflictError("submission already submitted")
			}
			if err := RequireRowVersionMatch(loaded.TableName(), loaded.ID, loaded.RowVersion, *in.ExpectedVersion); err != nil {
				return err
			}
			if templateID != nil && *templateID != uuid.Nil && *templateID != loaded.TemplateID {
				return ValidationError("submission belongs to another template")
			}
			tid := loaded.TemplateID
			templateID = &tid
			sub = loaded
		}

		tmpl, err := answers.LoadTemplate(dbc, a.deps.Templates, templateID)
		if err != nil {
			return err
		}
		bindings := answers.CollectBindingMetadata(tmpl)

		if in.ApplyBindings {
			res, err := a.binder.applyInTx(dbc, tmpl, domainagg.ApplyBindingWritesInput{
				TemplateID:                &tmpl.ID,
				TechID:                    in.TechID,
				Responses:                 in.Responses,
				RepeatGroups:              in.RepeatGroups,
				ExpectedRowVersions:       in.ExpectedRowVersions,
				AllowCreateWhenIncomplete: in.AllowCreateWhenIncomplete,
				Actor:                     actor,
				WrittenAt:                 savedAt,
			})
			if err != nil {
				return err
			}
			out.Binding = &res
		}
		techRef, err := a.technologyRef(dbc, in.TechID, out.Binding)
		if err != nil {
			return err
		}

		created := sub == nil
		if created {
			sub = &types.FormSubmission{
				ID:           uuid.New(),
				TemplateID:   tmpl.ID,
				TechnologyID: techRef,
				Status:       types.SubmissionStatusDraft,
				CreatedAt:    savedAt,
				UpdatedAt:    savedAt,
			}
		}

		generation := sub.Generation + 1
		responses, groupRows, err := a.diff(dbc, sub, generation, bindings, in, savedAt)
		if err != nil {
			return err
		}
		if len(responses) == 0 && len(groupRows) == 0 {
			generation = sub.Generation
		}

		rowVersion := sub.RowVersion
		if created {
			sub.Generation = generation
			if err := a.deps.Submissions.Create(dbc, sub); err != nil {
				return err
			}
		} else {
			updates := map[string]any{"generation": generation, "updated_at": savedAt}
			if techRef != nil {
				updates["technology_id"] = *techRef
			}
			ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, sub.TableName(), sub.ID, sub.RowVersion, updates)
			if err != nil {
				return err
			}
			if err := RequireRowVersion(ok, sub.TableName(), sub.ID, sub.RowVersion, "draft saved concurrently"); err != nil {
				return err
			}
			rowVersion++
		}
		if err := a.deps.Responses.CreateResponses(dbc, responses); err != nil {
			return err
		}
		if err := a.deps.Responses.CreateGroupRows(dbc, groupRows); err != nil {
			return err
		}

		status := sub.Status
		if in.Submit {
			ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, sub.TableName(), sub.ID, []string{types.SubmissionStatusDraft}, map[string]any{
				"status":       types.SubmissionStatusSubmitted,
				"submitted_at": savedAt,
				"submitted_by": actor,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "submission already submitted"); err != nil {
				return err
			}
			status = types.SubmissionStatusSubmitted
		}

		out.SubmissionID = sub.ID
		out.Status = status
		out.Generation = generation
		out.RowVersion = rowVersion
		out.WrittenResponses = len(responses)
		out.WrittenGroupRows = len(groupRows)
		return nil
	})
	return out, err
}

// technologyRef links the submission to the technology it describes, when known.
func (a *submissionAggregate) technologyRef(dbc dbctx.Context, techID string, binding *domainagg.ApplyBindingWritesResult) (*uuid.UUID, error) {
	if binding != nil && binding.TechnologyID != uuid.Nil {
		id := binding.TechnologyID
		return &id, nil
	}
	techID = strings.TrimSpace(techID)
	if techID == "" {
		return nil, nil
	}
	tech, err := a.deps.Technology.GetByTechID(dbc, techID)
	if err != nil || tech == nil {
		return nil, err
	}
	id := tech.ID
	return &id, nil
}

// diff returns the records to append: answers whose value or answering
// revision differs from the latest generation, and whole groups that changed.
func (a *submissionAggregate) diff(
	dbc dbctx.Context,
	sub *types.FormSubmission,
	generation int,
	bindings map[string]answers.BindingMetadata,
	in domainagg.SaveSubmissionInput,
	at time.Time,
) ([]*types.QuestionResponse, []*types.RepeatableGroupResponse, error) {
	latest := map[string]*types.QuestionResponse{}
	latestRows := map[string][]*types.RepeatableGroupResponse{}
	if sub.Generation > 0 {
		prev, err := a.deps.Responses.LatestResponses(dbc, sub.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range prev {
			latest[r.QuestionCode] = r
		}
		prevRows, err := a.deps.Responses.LatestGroupRows(dbc, sub.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range prevRows {
			latestRows[r.QuestionCode] = append(latestRows[r.QuestionCode], r)
		}
	}

	var responses []*types.QuestionResponse
	for _, code := range sortedKeys(in.Responses) {
		raw, err := json.Marshal(in.Responses[code])
		if err != nil {
			return nil, nil, ValidationError("response " + code + " is not JSON encodable")
		}
		rev := revisionFor(bindings, code)
		if prev := latest[code]; prev != nil &&
			answers.JSONEqual(prev.Value, raw) &&
			types.RevisionKey(prev.QuestionRevisionID) == types.RevisionKey(rev) {
			continue
		}
		responses = append(responses, &types.QuestionResponse{
			SubmissionID:       sub.ID,
			QuestionCode:       code,
			Generation:         generation,
			Value:              datatypes.JSON(raw),
			QuestionRevisionID: rev,
			CreatedAt:          at,
		})
	}

	var groupRows []*types.RepeatableGroupResponse
	for _, code := range sortedKeys(in.RepeatGroups) {
		rows := in.RepeatGroups[code]
		rev := revisionFor(bindings, code)
		encoded := make([]datatypes.JSON, 0, len(rows))
		for _, row := range rows {
			b, err := json.Marshal(row)
			if err != nil {
				return nil, nil, ValidationError("group " + code + " row is not JSON encodable")
			}
			encoded = append(encoded, datatypes.JSON(b))
		}
		if sameGroup(latestRows[code], encoded, rev) {
			continue
		}
		if len(encoded) == 0 {
			if len(latestRows[code]) == 0 {
				continue
			}
			groupRows = append(groupRows, &types.RepeatableGroupResponse{
				SubmissionID: sub.ID,
				QuestionCode: code,
				Generation:   generation,
				RowIndex:     repos.GroupClearedRowIndex,
				CreatedAt:    at,
			})
			continue
		}
		for i, data := range encoded {
			groupRows = append(groupRows, &types.RepeatableGroupResponse{
				SubmissionID:       sub.ID,
				QuestionCode:       code,
				Generation:         generation,
				RowIndex:           i,
				Data:               data,
				QuestionRevisionID: rev,
				CreatedAt:          at,
			})
		}
	}
	return responses, groupRows, nil
}

func sameGroup(prev []*types.RepeatableGroupResponse, next []datatypes.JSON, rev *uuid.UUID) bool {
	if len(prev) != len(next) {
		return false
	}
	for i, p := range prev {
		if !answers.JSONEqual(p.Data, next[i]) || types.RevisionKey(p.QuestionRevisionID) != types.RevisionKey(rev) {
			return false
		}
	}
	return true
}

// revisionFor is the current revision of a dictionary-bound field, nil for form-local ones.
func revisionFor(bindings map[string]answers.BindingMetadata, code string) *uuid.UUID {
	b, ok := bindings[code]
	if !ok || b.CurrentRevisionID == "" {
		return nil
	}
	id, err := uuid.Parse(b.CurrentRevisionID)
	if err != nil {
		return nil
	}
	return &id
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
