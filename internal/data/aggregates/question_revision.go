package aggregates

import (
	"context"
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

type QuestionRevisionAggregateDeps struct {
	Base BaseDeps

	Questions repos.QuestionRepo
	Revisions repos.QuestionRevisionRepo
	Clock     func() time.Time
}

type questionRevisionAggregate struct {
	deps QuestionRevisionAggregateDeps
}

func NewQuestionRevisionAggregate(deps QuestionRevisionAggregateDeps) domainagg.QuestionRevisionAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &questionRevisionAggregate{deps: deps}
}

func (a *questionRevisionAggregate) Contract() domainagg.Contract {
	return domainagg.QuestionRevisionAggregateContract
}

func (a *questionRevisionAggregate) CreateQuestion(ctx context.Context, in domainagg.CreateQuestionInput) (domainagg.CreateQuestionResult, error) {
	const op = "Forms.QuestionRevision.CreateQuestion"
	var out domainagg.CreateQuestionResult
	if a.deps.Questions == nil || a.deps.Revisions == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "question revision aggregate repos not configured", nil)
	}

	key := strings.TrimSpace(in.Key)
	label := strings.TrimSpace(in.Content.Label)
	path := strings.TrimSpace(in.BindingPath)
	source := strings.TrimSpace(in.DataSource)
	if source == "" {
		source = types.DataSourceStructured
	}
	if key == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing question key", nil)
	}
	if label == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing label", nil)
	}
	if err := validateBinding(path, source); err != nil {
		return out, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}

	createdAt := a.at(in.CreatedAt)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		existing, err := a.deps.Questions.GetByKey(dbc, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return ConflictError("question " + key + " already exists")
		}

		revID := uuid.New()
		q := &types.Question{
			ID:                uuid.New(),
			Key:               key,
			Label:             label,
			BindingPath:       path,
			DataSource:        source,
			CurrentRevisionID: &revID,
			CurrentVersion:    1,
			CreatedAt:         createdAt,
			UpdatedAt:         createdAt,
		}
		if err := a.deps.Questions.Create(dbc, q); err != nil {
			return err
		}
		rev := newRevision(revID, q, 1, in.Content, true, "initial revision", in.CreatedBy, createdAt)
		if err := a.deps.Revisions.Create(dbc, rev); err != nil {
			return err
		}
		out = domainagg.CreateQuestionResult{
			QuestionID:    q.ID,
			RevisionID:    revID,
			VersionNumber: 1,
			CreatedAt:     createdAt,
		}
		return nil
	})
	return out, err
}

func (a *questionRevisionAggregate) CreateRevision(ctx context.Context, in domainagg.CreateRevisionInput) (domainagg.CreateRevisionResult, error) {
	const op = "Forms.QuestionRevision.CreateRevision"
	var out domainagg.CreateRevisionResult
	if a.deps.Questions == nil || a.deps.Revisions == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "question revision aggregate repos not configured", nil)
	}
	key := strings.TrimSpace(in.QuestionKey)
	if key == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing question key", nil)
	}
	if strings.TrimSpace(in.Content.Label) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing label", nil)
	}

	createdAt := a.at(in.CreatedAt)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		q, err := a.deps.Questions.GetByKey(dbc, key)
		if err != nil {
			return err
		}
		if q == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "question "+key+" not found", nil)
		}
		expected := q.RowVersion
		if in.ExpectedQuestionVersion != nil {
			if err := RequireRowVersionMatch(types.Question{}.TableName(), q.ID, q.RowVersion, *in.ExpectedQuestionVersion); err != nil {
				return err
			}
			expected = *in.ExpectedQuestionVersion
		}

		maxVersion, err := a.deps.Revisions.MaxVersionNumber(dbc, q.ID)
		if err != nil {
			return err
		}
		next := maxVersion + 1
		rev := newRevision(uuid.New(), q, next, in.Content, in.Significant, in.ChangeReason, in.CreatedBy, createdAt)
		if err := a.deps.Revisions.Create(dbc, rev); err != nil {
			return lockOnDuplicateRevision(err, q.ID, expected)
		}

		// the question row serializes revision authors for the same key
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, types.Question{}.TableName(), q.ID, expected, map[string]any{
			"current_revision_id": rev.ID,
			"current_version":     next,
			"label":               strings.TrimSpace(in.Content.Label),
			"updated_at":          createdAt,
		})
		if err != nil {
			return err
		}
		if err := RequireRowVersion(ok, types.Question{}.TableName(), q.ID, expected, "question revised concurrently"); err != nil {
			return err
		}
		out = domainagg.CreateRevisionResult{
			QuestionID:    q.ID,
			RevisionID:    rev.ID,
			VersionNumber: next,
			Significant:   rev.Significant,
			CreatedAt:     createdAt,
		}
		return nil
	})
	return out, err
}

func (a *questionRevisionAggregate) at(t time.Time) time.Time {
	if t.IsZero() {
		return a.deps.Clock().UTC()
	}
	return t.UTC()
}

func newRevision(id uuid.UUID, q *types.Question, version int, c domainagg.RevisionContent, significant bool, reason, createdBy string, at time.Time) *types.QuestionRevision {
	return &types.QuestionRevision{
		ID:            id,
		QuestionID:    q.ID,
		QuestionKey:   q.Key,
		VersionNumber: version,
		Label:         strings.TrimSpace(c.Label),
		HelpText:      strings.TrimSpace(c.HelpText),
		Options:       datatypes.JSON(c.Options),
		Validation:    datatypes.JSON(c.Validation),
		Significant:   significant,
		ChangeReason:  strings.TrimSpace(reason),
		CreatedBy:     strings.TrimSpace(createdBy),
		CreatedAt:     at,
	}
}

// validateBinding checks that a question binds to a real record. Structured
// questions must name an answerable column; extended ones only need the root.
func validateBinding(path, source string) error {
	if source != types.DataSourceStructured && source != types.DataSourceExtended {
		return ValidationError("dataSource must be structured or extended")
	}
	root, field, ok := answers.SplitBindingPath(path)
	if !ok {
		return ValidationError("bindingPath must look like root.field")
	}
	if !answers.IsRoot(root) {
		return ValidationError("unknown binding root " + root)
	}
	if source == types.DataSourceStructured && !answers.IsBindableField(root, field) {
		return ValidationError(path + " is not an answerable column")
	}
	return nil
}

// lockOnDuplicateRevision turns a (question, version) collision into a lock
// conflict: another author took the version number first.
func lockOnDuplicateRevision(err error, questionID uuid.UUID, expected int) error {
	if domainagg.IsCode(MapError("create revision", err), domainagg.CodeConflict) {
		return RequireRowVersion(false, types.QuestionRevision{}.TableName(), questionID, expected, "revision number taken concurrently")
	}
	return err
}
