package forms

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

// QuestionRevisionRepo is append-only: there is no update or delete.
type QuestionRevisionRepo interface {
	Create(dbc dbctx.Context, rev *types.QuestionRevision) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.QuestionRevision, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.QuestionRevision, error)
	MaxVersionNumber(dbc dbctx.Context, questionID uuid.UUID) (int, error)
	ListByQuestionKey(dbc dbctx.Context, key string) ([]*types.QuestionRevision, error)
	ListByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) ([]*types.QuestionRevision, error)
}

type questionRevisionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRevisionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRevisionRepo {
	repoLog := baseLog.With("repo", "QuestionRevisionRepo")
	return &questionRevisionRepo{db: db, log: repoLog}
}

func (r *questionRevisionRepo) Create(dbc dbctx.Context, rev *types.QuestionRevision) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rev == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(rev).Error
}

func (r *questionRevisionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.QuestionRevision, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *questionRevisionRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.QuestionRevision, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QuestionRevision
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MaxVersionNumber returns 0 when the question has no revisions yet.
func (r *questionRevisionRepo) MaxVersionNumber(dbc dbctx.Context, questionID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var max int
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.QuestionRevision{}).
		Where("question_id = ?", questionID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *questionRevisionRepo) ListByQuestionKey(dbc dbctx.Context, key string) ([]*types.QuestionRevision, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QuestionRevision
	key = strings.TrimSpace(key)
	if key == "" {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("question_key = ?", key).
		Order("version_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionRevisionRepo) ListByQuestionIDs(dbc dbctx.Context, questionIDs []uuid.UUID) ([]*types.QuestionRevision, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QuestionRevision
	if len(questionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("question_id IN ?", questionIDs).
		Order("question_id ASC, version_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
