package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
)

// Unique suffixes s so fixtures never collide on a shared database.
func Unique(s string) string {
	return s + "-" + uuid.NewString()[:8]
}

// SeedQuestion creates a dictionary question with revision 1 as current.
func SeedQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, key, bindingPath, dataSource string) (*types.Question, *types.QuestionRevision) {
	tb.Helper()
	if dataSource == "" {
		dataSource = types.DataSourceStructured
	}
	now := time.Now().UTC()
	rev := &types.QuestionRevision{ID: uuid.New()}
	q := &types.Question{
		ID:                uuid.New(),
		Key:               key,
		Label:             key,
		BindingPath:       bindingPath,
		DataSource:        dataSource,
		CurrentRevisionID: &rev.ID,
		CurrentVersion:    1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	rev.QuestionID = q.ID
	rev.QuestionKey = key
	rev.VersionNumber = 1
	rev.Label = key
	rev.Significant = true
	rev.CreatedAt = now
	if err := tx.WithContext(ctx).Create(rev).Error; err != nil {
		tb.Fatalf("seed revision: %v", err)
	}
	return q, rev
}

// SeedRevision appends a revision and moves the question's pointer to it.
func SeedRevision(tb testing.TB, ctx context.Context, tx *gorm.DB, q *types.Question, significant bool) *types.QuestionRevision {
	tb.Helper()
	rev := &types.QuestionRevision{
		ID:            uuid.New(),
		QuestionID:    q.ID,
		QuestionKey:   q.Key,
		VersionNumber: q.CurrentVersion + 1,
		Label:         q.Label,
		Significant:   significant,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(rev).Error; err != nil {
		tb.Fatalf("seed revision: %v", err)
	}
	if err := tx.WithContext(ctx).Model(&types.Question{}).Where("id = ?", q.ID).Updates(map[string]any{
		"current_revision_id": rev.ID,
		"current_version":     rev.VersionNumber,
	}).Error; err != nil {
		tb.Fatalf("advance question: %v", err)
	}
	q.CurrentRevisionID = &rev.ID
	q.CurrentVersion = rev.VersionNumber
	return rev
}

// Field describes one template field; Key links it to a dictionary question.
type Field struct {
	Code string
	Type string
	Key  string
}

// SeedTemplate creates a one-section template. Active templates deactivate no
// others; tests that rely on GetActive should pass explicit ids instead.
func SeedTemplate(tb testing.TB, ctx context.Context, tx *gorm.DB, active bool, fields ...Field) *types.FormTemplate {
	tb.Helper()
	tmpl := &types.FormTemplate{
		ID:       uuid.New(),
		Name:     Unique("template"),
		Version:  "1.0",
		IsActive: active,
	}
	sec := types.FormSection{ID: uuid.New(), TemplateID: tmpl.ID, Code: "main", Title: "Main"}
	for i, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = types.FieldShortText
		}
		fq := types.FormQuestion{
			ID:        uuid.New(),
			SectionID: sec.ID,
			FieldCode: f.Code,
			Label:     f.Code,
			Type:      typ,
			SortOrder: i,
		}
		if f.Key != "" {
			key := f.Key
			fq.DictionaryKey = &key
		}
		sec.Questions = append(sec.Questions, fq)
	}
	tmpl.Sections = []types.FormSection{sec}
	if err := tx.WithContext(ctx).Create(tmpl).Error; err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return tmpl
}

// SeedTechnology creates a technology, optionally with a triage stage.
func SeedTechnology(tb testing.TB, ctx context.Context, tx *gorm.DB, techID string, withTriage bool) *types.Technology {
	tb.Helper()
	tech := &types.Technology{
		ID:             uuid.New(),
		TechID:         techID,
		TechnologyName: "Widget",
		CurrentStage:   "TRIAGE",
		Status:         "ACTIVE",
	}
	if err := tx.WithContext(ctx).Omit("TriageStage", "ViabilityStage").Create(tech).Error; err != nil {
		tb.Fatalf("seed technology: %v", err)
	}
	if withTriage {
		st := &types.TriageStage{ID: uuid.New(), TechnologyID: tech.ID}
		if err := tx.WithContext(ctx).Create(st).Error; err != nil {
			tb.Fatalf("seed triage stage: %v", err)
		}
		tech.TriageStage = st
	}
	return tech
}

// SetRowVersion forces a record's row_version, for conflict scenarios.
func SetRowVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, table string, id uuid.UUID, v int) {
	tb.Helper()
	if err := tx.WithContext(ctx).Table(table).Where("id = ?", id).Update("row_version", v).Error; err != nil {
		tb.Fatalf("set row_version: %v", err)
	}
}
