package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Data source tiers for dictionary questions.
const (
	// DataSourceStructured binds the answer to a typed column on a subject record.
	DataSourceStructured = "structured"
	// DataSourceExtended keeps the answer value in the record's extended_data bag.
	DataSourceExtended = "extended"
)

// Question is the stable dictionary entry a form field can link to.
// Its revision pointer only moves through the revision store.
type Question struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Key         string `gorm:"column:question_key;not null;uniqueIndex" json:"key"`
	Label       string `gorm:"column:label;not null" json:"label"`
	BindingPath string `gorm:"column:binding_path;not null" json:"bindingPath"`
	DataSource  string `gorm:"column:data_source;not null;default:structured" json:"dataSource"`

	CurrentRevisionID *uuid.UUID `gorm:"type:uuid;column:current_revision_id" json:"currentRevisionId,omitempty"`
	CurrentVersion    int        `gorm:"column:current_version;not null;default:0" json:"currentVersion"`

	RowVersion int `gorm:"column:row_version;not null;default:0" json:"rowVersion"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Question) TableName() string { return "question" }

func (q *Question) BeforeCreate(_ *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// CurrentRevisionKey returns the current revision id as a string, empty when unset.
func (q *Question) CurrentRevisionKey() string {
	if q == nil || q.CurrentRevisionID == nil || *q.CurrentRevisionID == uuid.Nil {
		return ""
	}
	return q.CurrentRevisionID.String()
}

// QuestionRevision is an immutable snapshot of a question's content.
type QuestionRevision struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	QuestionID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_question_revision_version,priority:1;index" json:"questionId"`
	QuestionKey   string    `gorm:"column:question_key;not null;index" json:"questionKey"`
	VersionNumber int       `gorm:"column:version_number;not null;uniqueIndex:idx_question_revision_version,priority:2" json:"versionNumber"`

	Label      string         `gorm:"column:label;not null" json:"label"`
	HelpText   string         `gorm:"column:help_text" json:"helpText,omitempty"`
	Options    datatypes.JSON `gorm:"column:options;type:jsonb" json:"options,omitempty"`
	Validation datatypes.JSON `gorm:"column:validation;type:jsonb" json:"validation,omitempty"`

	// Significant revisions invalidate earlier answers; cosmetic ones do not.
	Significant  bool   `gorm:"column:significant;not null;default:false" json:"significant"`
	ChangeReason string `gorm:"column:change_reason" json:"changeReason,omitempty"`
	CreatedBy    string `gorm:"column:created_by" json:"createdBy,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

func (QuestionRevision) TableName() string { return "question_revision" }

func (r *QuestionRevision) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RevisionContent is the authored part of a revision.
type RevisionContent struct {
	Label      string         `json:"label" yaml:"label"`
	HelpText   string         `json:"helpText,omitempty" yaml:"helpText"`
	Options    datatypes.JSON `json:"options,omitempty" yaml:"-"`
	Validation datatypes.JSON `json:"validation,omitempty" yaml:"-"`
}
