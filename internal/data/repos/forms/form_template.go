package forms

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type FormTemplateRepo interface {
	Create(dbc dbctx.Context, tmpl *types.FormTemplate) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FormTemplate, error)
	GetActive(dbc dbctx.Context) (*types.FormTemplate, error)
	GetByNameVersion(dbc dbctx.Context, name, version string) (*types.FormTemplate, error)
	// Activate makes id the only active template.
	Activate(dbc dbctx.Context, id uuid.UUID) error
}

type formTemplateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormTemplateRepo(db *gorm.DB, baseLog *logger.Logger) FormTemplateRepo {
	repoLog := baseLog.With("repo", "FormTemplateRepo")
	return &formTemplateRepo{db: db, log: repoLog}
}

// withStructure preloads sections and questions in display order, plus each
// question's dictionary entry.
func withStructure(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Sections.Questions.Dictionary")
}

func (r *formTemplateRepo) Create(dbc dbctx.Context, tmpl *types.FormTemplate) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if tmpl == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(tmpl).Error
}

func (r *formTemplateRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FormTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.FormTemplate
	if err := withStructure(transaction.WithContext(dbc.Ctx)).
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

func (r *formTemplateRepo) GetActive(dbc dbctx.Context) (*types.FormTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.FormTemplate
	if err := withStructure(transaction.WithContext(dbc.Ctx)).
		Where("is_active = ?", true).
		Order("updated_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *formTemplateRepo) GetByNameVersion(dbc dbctx.Context, name, version string) (*types.FormTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.FormTemplate
	if err := withStructure(transaction.WithContext(dbc.Ctx)).
		Where("name = ? AND version = ?", strings.TrimSpace(name), strings.TrimSpace(version)).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *formTemplateRepo) Activate(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.FormTemplate{}).
			Where("id <> ? AND is_active = ?", id, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&types.FormTemplate{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	})
}
