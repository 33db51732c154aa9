package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/techform-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Question dictionary
		// =========================
		&types.Question{},
		&types.QuestionRevision{},

		// =========================
		// Templates
		// =========================
		&types.FormTemplate{},
		&types.FormSection{},
		&types.FormQuestion{},

		// =========================
		// Subject records
		// =========================
		&types.Technology{},
		&types.TriageStage{},
		&types.ViabilityStage{},

		// =========================
		// Submissions
		// =========================
		&types.FormSubmission{},
		&types.QuestionResponse{},
		&types.RepeatableGroupResponse{},
	)
}

// EnsureFormIndexes adds Postgres-only indexes AutoMigrate cannot express.
func EnsureFormIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	// One active template at a time.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_form_template_single_active
		ON form_template (is_active)
		WHERE is_active;
	`).Error; err != nil {
		return fmt.Errorf("create idx_form_template_single_active: %w", err)
	}
	// Metadata lookups by key inside the extended_data bags.
	for _, table := range []string{"technology", "triage_stage", "viability_stage"} {
		if err := db.Exec(fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_extended_data
			ON %s
			USING GIN (extended_data);
		`, table, table)).Error; err != nil {
			return fmt.Errorf("create idx_%s_extended_data: %w", table, err)
		}
	}
	return nil
}
