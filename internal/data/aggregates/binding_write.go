package aggregates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/techform-backend/internal/data/repos"
	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	pkgerrors "github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

const (
	defaultTechStage  = "TRIAGE"
	defaultTechStatus = "ACTIVE"
	draftTechName     = "Untitled technology"
)

type AnswerAggregateDeps struct {
	Base BaseDeps

	Templates  repos.FormTemplateRepo
	Technology repos.TechnologyRepo

	// Observer is optional; it is told about unreadable extended_data bags.
	Observer answers.Observer
	Clock    func() time.Time
}

type answerAggregate struct {
	deps AnswerAggregateDeps
}

func NewAnswerAggregate(deps AnswerAggregateDeps) domainagg.AnswerAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &answerAggregate{deps: deps}
}

func (a *answerAggregate) Contract() domainagg.Contract {
	return domainagg.AnswerAggregateContract
}

func (a *answerAggregate) ApplyBindingWrites(ctx context.Context, in domainagg.ApplyBindingWritesInput) (domainagg.ApplyBindingWritesResult, error) {
	const op = "Forms.Answer.ApplyBindingWrites"
	var out domainagg.ApplyBindingWritesResult
	if a.deps.Templates == nil || a.deps.Technology == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "answer aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		tmpl, err := answers.LoadTemplate(dbc, a.deps.Templates, in.TemplateID)
		if err != nil {
			return err
		}
		res, err := a.applyInTx(dbc, tmpl, in)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// pendingWrite is one submitted answer routed to its binding root.
type pendingWrite struct {
	binding answers.BindingMetadata
	value   any
}

// rootWrite collects what one record needs: column updates and bag stamps.
type rootWrite struct {
	updates map[string]any
	stamps  answers.ExtendedData
}

// applyInTx runs inside the caller's transaction so submission saves can share it.
func (a *answerAggregate) applyInTx(dbc dbctx.Context, tmpl *types.FormTemplate, in domainagg.ApplyBindingWritesInput) (domainagg.ApplyBindingWritesResult, error) {
	log := a.deps.Base.Log
	now := in.WrittenAt.UTC()
	if in.WrittenAt.IsZero() {
		now = a.deps.Clock().UTC()
	}
	actor := strings.TrimSpace(in.Actor)
	techID := strings.TrimSpace(in.TechID)

	pending := partitionByRoot(answers.CollectBindingMetadata(tmpl), in, log)

	var tech *types.Technology
	if techID != "" {
		var err error
		tech, err = a.deps.Technology.GetByTechID(dbc, techID)
		if err != nil {
			return domainagg.ApplyBindingWritesResult{}, err
		}
	}

	out := domainagg.ApplyBindingWritesResult{TechID: techID, RowVersions: domainagg.RowVersions{}}
	if len(pending) == 0 {
		if tech != nil {
			out.TechnologyID = tech.ID
			out.RowVersions = currentRowVersions(tech)
		}
		return out, nil
	}

	stamped := map[string]bool{}
	if tech == nil {
		created, err := a.createTechnology(dbc, techID, pending[types.RootTechnology], in, actor, now, stamped)
		if err != nil {
			return out, err
		}
		tech = created
		out.Created = true
	} else if writes := pending[types.RootTechnology]; len(writes) > 0 {
		if err := a.updateRecord(dbc, types.RootTechnology, tech, tech.ID, tech.RowVersion, tech.ExtendedData, writes, in.ExpectedRowVersions, now, actor, stamped); err != nil {
			return out, err
		}
		tech.RowVersion++
	}

	for _, root := range []string{types.RootTriageStage, types.RootViabilityStage} {
		writes := pending[root]
		if len(writes) == 0 {
			continue
		}
		if err := a.writeStage(dbc, root, tech, writes, in.ExpectedRowVersions, now, actor, stamped); err != nil {
			return out, err
		}
	}

	out.TechnologyID = tech.ID
	out.TechID = tech.TechID
	out.RowVersions = currentRowVersions(tech)
	out.StampedKeys = make([]string, 0, len(stamped))
	for k := range stamped {
		out.StampedKeys = append(out.StampedKeys, k)
	}
	sort.Strings(out.StampedKeys)
	return out, nil
}

func partitionByRoot(bindings map[string]answers.BindingMetadata, in domainagg.ApplyBindingWritesInput, log *logger.Logger) map[string][]pendingWrite {
	codes := make([]string, 0, len(bindings))
	for code := range bindings {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := map[string][]pendingWrite{}
	for _, code := range codes {
		b := bindings[code]
		var (
			value any
			ok    bool
		)
		if b.Repeatable() {
			var rows []map[string]any
			rows, ok = in.RepeatGroups[code]
			value = answers.RowsToValue(rows)
		} else {
			value, ok = in.Responses[code]
		}
		if !ok {
			continue
		}
		if !answers.IsRoot(b.Root) {
			log.Warn("skipping answer with unresolvable binding path", "field_code", code, "binding_path", b.BindingPath)
			continue
		}
		out[b.Root] = append(out[b.Root], pendingWrite{binding: b, value: value})
	}
	return out
}

func (a *answerAggregate) createTechnology(
	dbc dbctx.Context,
	techID string,
	writes []pendingWrite,
	in domainagg.ApplyBindingWritesInput,
	actor string,
	now time.Time,
	stamped map[string]bool,
) (*types.Technology, error) {
	if _, ok := in.ExpectedRowVersions.Lookup(types.RootTechnology); ok {
		return nil, &domainagg.OptimisticLockError{
			Table:  types.TableForRoot(types.RootTechnology),
			Reason: fmt.Sprintf("technology %q no longer exists", techID),
		}
	}
	tech := &types.Technology{
		TechID:         techID,
		CurrentStage:   defaultTechStage,
		Status:         defaultTechStatus,
		LastModifiedBy: actor,
	}
	rw, err := a.collect(types.RootTechnology, tech, nil, writes, now)
	if err != nil {
		return nil, err
	}
	tech.TechID = strings.TrimSpace(tech.TechID)
	tech.TechnologyName = strings.TrimSpace(tech.TechnologyName)
	if tech.TechID == "" || tech.TechnologyName == "" {
		if !in.AllowCreateWhenIncomplete {
			return nil, ValidationError("techId and technologyName are required to create a technology")
		}
		if tech.TechID == "" {
			tech.TechID = "DRAFT-" + strings.ToUpper(uuid.NewString()[:8])
		}
		if tech.TechnologyName == "" {
			tech.TechnologyName = draftTechName
		}
	}
	if len(rw.stamps) > 0 {
		bag, _ := answers.MergeRaw(nil, rw.stamps)
		tech.ExtendedData = datatypes.JSON(bag)
	}
	if err := a.deps.Technology.Create(dbc, tech); err != nil {
		return nil, lockOnDuplicate(err, types.RootTechnology, uuid.Nil, "technology created concurrently")
	}
	markStamped(stamped, rw.stamps)
	return tech, nil
}

func (a *answerAggregate) writeStage(
	dbc dbctx.Context,
	root string,
	tech *types.Technology,
	writes []pendingWrite,
	expected domainagg.RowVersions,
	now time.Time,
	actor string,
	stamped map[string]bool,
) error {
	switch root {
	case types.RootTriageStage:
		if st := tech.TriageStage; st != nil {
			if err := a.updateRecord(dbc, root, st, st.ID, st.RowVersion, st.ExtendedData, writes, expected, now, actor, stamped); err != nil {
				return err
			}
			st.RowVersion++
			return nil
		}
		if err := requireAbsent(expected, root, tech.ID); err != nil {
			return err
		}
		st := &types.TriageStage{TechnologyID: tech.ID}
		if err := a.createStage(dbc, root, st, &st.ExtendedData, writes, now, stamped, func() error {
			return a.deps.Technology.CreateTriageStage(dbc, st)
		}); err != nil {
			return err
		}
		tech.TriageStage = st
	case types.RootViabilityStage:
		if st := tech.ViabilityStage; st != nil {
			if err := a.updateRecord(dbc, root, st, st.ID, st.RowVersion, st.ExtendedData, writes, expected, now, actor, stamped); err != nil {
				return err
			}
			st.RowVersion++
			return nil
		}
		if err := requireAbsent(expected, root, tech.ID); err != nil {
			return err
		}
		st := &types.ViabilityStage{TechnologyID: tech.ID}
		if err := a.createStage(dbc, root, st, &st.ExtendedData, writes, now, stamped, func() error {
			return a.deps.Technology.CreateViabilityStage(dbc, st)
		}); err != nil {
			return err
		}
		tech.ViabilityStage = st
	}
	return nil
}

// requireAbsent rejects creating a record the caller claims to have seen.
func requireAbsent(expected domainagg.RowVersions, root string, techID uuid.UUID) error {
	if v, ok := expected.Lookup(root); ok {
		return RequireRowVersion(false, types.TableForRoot(root), uuid.Nil, v,
			fmt.Sprintf("%s for technology %s no longer exists", root, techID))
	}
	return nil
}

func (a *answerAggregate) createStage(
	dbc dbctx.Context,
	root string,
	record any,
	bag *datatypes.JSON,
	writes []pendingWrite,
	now time.Time,
	stamped map[string]bool,
	create func() error,
) error {
	rw, err := a.collect(root, record, nil, writes, now)
	if err != nil {
		return err
	}
	if len(rw.stamps) > 0 {
		raw, _ := answers.MergeRaw(nil, rw.stamps)
		*bag = datatypes.JSON(raw)
	}
	if err := create(); err != nil {
		return lockOnDuplicate(err, root, uuid.Nil, root+" created concurrently")
	}
	markStamped(stamped, rw.stamps)
	return nil
}

// updateRecord applies writes to an existing record and commits them with a
// row_version compare-and-set. The CAS runs even when nothing changed, so a
// replay with a used version always conflicts.
func (a *answerAggregate) updateRecord(
	dbc dbctx.Context,
	root string,
	record any,
	id uuid.UUID,
	current int,
	rawBag datatypes.JSON,
	writes []pendingWrite,
	expected domainagg.RowVersions,
	now time.Time,
	actor string,
	stamped map[string]bool,
) error {
	table := types.TableForRoot(root)
	if !a.Contract().Writes(table) {
		return InvariantError("answer aggregate does not own table " + table)
	}
	want, ok := expected.Lookup(root)
	if !ok {
		return RequireRowVersion(false, table, id, current, "no expected row version supplied for "+root)
	}
	if err := RequireRowVersionMatch(table, id, current, want); err != nil {
		return err
	}

	bag, perr := answers.ParseExtendedData(rawBag, root, a.deps.Base.Log)
	if perr != nil {
		a.malformed(root, id, perr)
	}
	rw, err := a.collect(root, record, bag, writes, now)
	if err != nil {
		return err
	}
	if len(rw.stamps) > 0 {
		merged, merr := answers.MergeRaw(rawBag, rw.stamps)
		if merr != nil && merged == nil {
			return merr
		}
		rw.updates["extended_data"] = datatypes.JSON(merged)
	}
	rw.updates["updated_at"] = now
	if root == types.RootTechnology && actor != "" {
		rw.updates["last_modified_by"] = actor
	}

	okCAS, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, table, id, want, rw.updates)
	if err != nil {
		return err
	}
	if err := RequireRowVersion(okCAS, table, id, want, "row was updated by another writer"); err != nil {
		return err
	}
	markStamped(stamped, rw.stamps)
	return nil
}

// collect assigns structured values onto record and decides which answers get
// new metadata. An answer is stamped when its value changed, when it has no
// entry yet, or when its entry was recorded against another revision.
func (a *answerAggregate) collect(root string, record any, bag answers.ExtendedData, writes []pendingWrite, now time.Time) (rootWrite, error) {
	rw := rootWrite{updates: map[string]any{}, stamps: answers.ExtendedData{}}
	for _, w := range writes {
		b := w.binding
		entry := bag.Lookup(b.DictionaryKey)

		changed := true
		if b.Extended() {
			// the bag stamp is the only copy of an extended answer
			if b.CurrentRevisionID == "" {
				return rw, errors.Join(ErrValidation, fmt.Errorf("field %s: question %s has no current revision to record the answer against", b.FieldCode, b.DictionaryKey))
			}
			if entry != nil {
				changed = !answers.ValuesEqual(entry.Value, w.value)
			}
		} else {
			assigned, err := answers.Assign(record, b.Field, w.value)
			if err != nil {
				if pkgerrors.Is(err, answers.ErrUnknownField) {
					a.deps.Base.Log.Warn("skipping answer bound to a non-answerable field",
						"field_code", b.FieldCode, "binding_path", b.BindingPath)
					continue
				}
				return rw, errors.Join(ErrValidation, fmt.Errorf("field %s: %w", b.FieldCode, err))
			}
			rw.updates[assigned.Column] = assigned.Value
			changed = assigned.Changed
		}

		if b.CurrentRevisionID == "" {
			a.deps.Base.Log.Debug("question has no current revision, not stamping", "dictionary_key", b.DictionaryKey)
			continue
		}
		if !changed && entry != nil && entry.QuestionRevisionID == b.CurrentRevisionID {
			continue
		}
		rw.stamps[b.DictionaryKey] = answers.VersionedAnswer{
			Value:              w.value,
			QuestionRevisionID: b.CurrentRevisionID,
			AnsweredAt:         now,
			Source:             root,
		}
	}
	return rw, nil
}

func (a *answerAggregate) malformed(root string, id uuid.UUID, err error) {
	a.deps.Base.Log.Warn("answer metadata unreadable, rewriting with this write's entries only",
		"scope", root, "id", id, "error", err.Error())
	if a.deps.Observer != nil {
		a.deps.Observer.IncMalformedMetadata(root)
	}
}

func markStamped(stamped map[string]bool, stamps answers.ExtendedData) {
	for k := range stamps {
		stamped[k] = true
	}
}

// lockOnDuplicate reports a unique violation on create as a lost race.
func lockOnDuplicate(err error, root string, id uuid.UUID, reason string) error {
	if domainagg.IsCode(MapError("create", err), domainagg.CodeConflict) {
		return &domainagg.OptimisticLockError{Table: types.TableForRoot(root), ID: id, Reason: reason}
	}
	return err
}

func currentRowVersions(tech *types.Technology) domainagg.RowVersions {
	out := domainagg.RowVersions{}
	if tech == nil {
		return out
	}
	out[types.RootTechnology] = tech.RowVersion
	if tech.TriageStage != nil {
		out[types.RootTriageStage] = tech.TriageStage.RowVersion
	}
	if tech.ViabilityStage != nil {
		out[types.RootViabilityStage] = tech.ViabilityStage.RowVersion
	}
	return out
}
