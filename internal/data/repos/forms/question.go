package forms

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type QuestionRepo interface {
	Create(dbc dbctx.Context, q *types.Question) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Question, error)
	GetByKey(dbc dbctx.Context, key string) (*types.Question, error)
	GetByKeys(dbc dbctx.Context, keys []string) ([]*types.Question, error)
	List(dbc dbctx.Context) ([]*types.Question, error)
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	repoLog := baseLog.With("repo", "QuestionRepo")
	return &questionRepo{db: db, log: repoLog}
}

func (r *questionRepo) Create(dbc dbctx.Context, q *types.Question) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if q == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(q).Error
}

func (r *questionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.Question
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *questionRepo) GetByKey(dbc dbctx.Context, key string) (*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var rows []*types.Question
	if err := transaction.WithContext(dbc.Ctx).
		Where("question_key = ?", key).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *questionRepo) GetByKeys(dbc dbctx.Context, keys []string) ([]*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Question
	if len(keys) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("question_key IN ?", keys).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionRepo) List(dbc dbctx.Context) ([]*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Question
	if err := transaction.WithContext(dbc.Ctx).
		Order("question_key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
