package forms

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

// TechnologyRepo reads the subject records. Writes to answerable columns go
// through the answer aggregate; this repo only creates rows.
type TechnologyRepo interface {
	Create(dbc dbctx.Context, tech *types.Technology) error
	CreateTriageStage(dbc dbctx.Context, stage *types.TriageStage) error
	CreateViabilityStage(dbc dbctx.Context, stage *types.ViabilityStage) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Technology, error)
	GetByTechID(dbc dbctx.Context, techID string) (*types.Technology, error)
	TechIDExists(dbc dbctx.Context, techID string) (bool, error)
}

type technologyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTechnologyRepo(db *gorm.DB, baseLog *logger.Logger) TechnologyRepo {
	repoLog := baseLog.With("repo", "TechnologyRepo")
	return &technologyRepo{db: db, log: repoLog}
}

func (r *technologyRepo) Create(dbc dbctx.Context, tech *types.Technology) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if tech == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Omit("TriageStage", "ViabilityStage").Create(tech).Error
}

func (r *technologyRepo) CreateTriageStage(dbc dbctx.Context, stage *types.TriageStage) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if stage == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(stage).Error
}

func (r *technologyRepo) CreateViabilityStage(dbc dbctx.Context, stage *types.ViabilityStage) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if stage == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(stage).Error
}

func (r *technologyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Technology, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

// GetByTechID loads the technology with both stages; nil when absent.
func (r *technologyRepo) GetByTechID(dbc dbctx.Context, techID string) (*types.Technology, error) {
	techID = strings.TrimSpace(techID)
	if techID == "" {
		return nil, nil
	}
	return r.first(dbc, "tech_id = ?", techID)
}

func (r *technologyRepo) first(dbc dbctx.Context, query string, args ...any) (*types.Technology, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Technology
	if err := transaction.WithContext(dbc.Ctx).
		Preload("TriageStage").
		Preload("ViabilityStage").
		Where(query, args...).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *technologyRepo) TechIDExists(dbc dbctx.Context, techID string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Technology{}).
		Where("tech_id = ?", strings.TrimSpace(techID)).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
