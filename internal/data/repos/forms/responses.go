package forms

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

// ResponseRepo stores append-only answer records. The current view of a
// submission is, per question code, the rows of the highest generation.
// A group row with a negative index marks a group cleared in that generation.
type ResponseRepo interface {
	CreateResponses(dbc dbctx.Context, rows []*types.QuestionResponse) error
	CreateGroupRows(dbc dbctx.Context, rows []*types.RepeatableGroupResponse) error
	LatestResponses(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.QuestionResponse, error)
	LatestGroupRows(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.RepeatableGroupResponse, error)
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	repoLog := baseLog.With("repo", "ResponseRepo")
	return &responseRepo{db: db, log: repoLog}
}

func (r *responseRepo) CreateResponses(dbc dbctx.Context, rows []*types.QuestionResponse) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

// GroupClearedRowIndex is the row index of a cleared-group marker.
const GroupClearedRowIndex = -1

func (r *responseRepo) CreateGroupRows(dbc dbctx.Context, rows []*types.RepeatableGroupResponse) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *responseRepo) LatestResponses(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.QuestionResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QuestionResponse
	if submissionID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Where(`generation = (
			SELECT MAX(r2.generation) FROM question_response r2
			WHERE r2.submission_id = question_response.submission_id
			AND r2.question_code = question_response.question_code)`).
		Order("question_code ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *responseRepo) LatestGroupRows(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.RepeatableGroupResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RepeatableGroupResponse
	if submissionID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Where(`generation = (
			SELECT MAX(g2.generation) FROM repeatable_group_response g2
			WHERE g2.submission_id = repeatable_group_response.submission_id
			AND g2.question_code = repeatable_group_response.question_code)`).
		Where("row_index >= 0").
		Order("question_code ASC, row_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
