package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SubmissionStatusDraft     = "DRAFT"
	SubmissionStatusSubmitted = "SUBMITTED"
)

// FormSubmission groups the append-only response records of one draft or submission.
// Generation advances on every save; records carry the generation they were written in.
type FormSubmission struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"templateId"`
	TechnologyID *uuid.UUID `gorm:"type:uuid;index" json:"technologyId,omitempty"`

	Status      string     `gorm:"column:status;not null;index" json:"status"`
	SubmittedBy string     `gorm:"column:submitted_by" json:"submittedBy,omitempty"`
	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submittedAt,omitempty"`

	Generation int `gorm:"column:generation;not null;default:0" json:"generation"`
	RowVersion int `gorm:"column:row_version;not null;default:0" json:"rowVersion"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (FormSubmission) TableName() string { return "form_submission" }

func (s *FormSubmission) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// QuestionResponse records one scalar answer. A changed answer is a new row in a
// later generation; rows are never updated.
type QuestionResponse struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index:idx_question_response_lookup,priority:1" json:"submissionId"`
	QuestionCode string    `gorm:"column:question_code;not null;index:idx_question_response_lookup,priority:2" json:"questionCode"`
	Generation   int       `gorm:"column:generation;not null;index:idx_question_response_lookup,priority:3" json:"generation"`

	Value              datatypes.JSON `gorm:"column:value;type:jsonb" json:"value"`
	QuestionRevisionID *uuid.UUID     `gorm:"type:uuid;column:question_revision_id" json:"questionRevisionId,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (QuestionResponse) TableName() string { return "question_response" }

func (r *QuestionResponse) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RepeatableGroupResponse records one row of a repeated group.
type RepeatableGroupResponse struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index:idx_repeat_group_lookup,priority:1" json:"submissionId"`
	QuestionCode string    `gorm:"column:question_code;not null;index:idx_repeat_group_lookup,priority:2" json:"questionCode"`
	Generation   int       `gorm:"column:generation;not null;index:idx_repeat_group_lookup,priority:3" json:"generation"`
	RowIndex     int       `gorm:"column:row_index;not null" json:"rowIndex"`

	Data               datatypes.JSON `gorm:"column:data;type:jsonb" json:"data"`
	QuestionRevisionID *uuid.UUID     `gorm:"type:uuid;column:question_revision_id" json:"questionRevisionId,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (RepeatableGroupResponse) TableName() string { return "repeatable_group_response" }

func (r *RepeatableGroupResponse) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RevisionKey returns the stored revision id as a string, empty when unset.
func RevisionKey(id *uuid.UUID) string {
	if id == nil || *id == uuid.Nil {
		return ""
	}
	return id.String()
}
