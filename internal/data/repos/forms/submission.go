package forms

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type FormSubmissionRepo interface {
	Create(dbc dbctx.Context, sub *types.FormSubmission) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FormSubmission, error)
}

type formSubmissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) FormSubmissionRepo {
	repoLog := baseLog.With("repo", "FormSubmissionRepo")
	return &formSubmissionRepo{db: db, log: repoLog}
}

func (r *formSubmissionRepo) Create(dbc dbctx.Context, sub *types.FormSubmission) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sub == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(sub).Error
}

func (r *formSubmissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FormSubmission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.FormSubmission
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
