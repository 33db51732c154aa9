package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Field types a template question can declare.
const (
	FieldShortText       = "SHORT_TEXT"
	FieldLongText        = "LONG_TEXT"
	FieldInteger         = "INTEGER"
	FieldNumber          = "NUMBER"
	FieldSingleSelect    = "SINGLE_SELECT"
	FieldMultiSelect     = "MULTI_SELECT"
	FieldCheckboxGroup   = "CHECKBOX_GROUP"
	FieldDate            = "DATE"
	FieldScore           = "SCORE"
	FieldRepeatableGroup = "REPEATABLE_GROUP"
)

// FormTemplate is the read-only form definition consumed by hydration and writes.
type FormTemplate struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Version     string    `gorm:"column:version;not null" json:"version"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	IsActive    bool      `gorm:"column:is_active;not null;default:false;index" json:"isActive"`

	Sections []FormSection `gorm:"foreignKey:TemplateID" json:"sections"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (FormTemplate) TableName() string { return "form_template" }

func (t *FormTemplate) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type FormSection struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID uuid.UUID `gorm:"type:uuid;not null;index" json:"templateId"`
	Code       string    `gorm:"column:code;not null" json:"code"`
	Title      string    `gorm:"column:title;not null" json:"title"`
	SortOrder  int       `gorm:"column:sort_order;not null;default:0" json:"sortOrder"`

	Questions []FormQuestion `gorm:"foreignKey:SectionID" json:"questions"`
}

func (FormSection) TableName() string { return "form_section" }

func (s *FormSection) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// FormQuestion is one field on a template. DictionaryKey links it to a
// versioned Question; without it the field is form-local.
type FormQuestion struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID uuid.UUID      `gorm:"type:uuid;not null;index" json:"sectionId"`
	FieldCode string         `gorm:"column:field_code;not null;index" json:"fieldCode"`
	Label     string         `gorm:"column:label;not null" json:"label"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Required  bool           `gorm:"column:required;not null;default:false" json:"required"`
	SortOrder int            `gorm:"column:sort_order;not null;default:0" json:"sortOrder"`
	Options   datatypes.JSON `gorm:"column:options;type:jsonb" json:"options,omitempty"`

	DictionaryKey *string   `gorm:"column:dictionary_key;index" json:"dictionaryKey,omitempty"`
	Dictionary    *Question `gorm:"foreignKey:DictionaryKey;references:Key" json:"dictionary,omitempty"`
}

func (FormQuestion) TableName() string { return "form_question" }

func (q *FormQuestion) BeforeCreate(_ *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// IsRepeatable reports whether the field stores a list of row objects.
func (q FormQuestion) IsRepeatable() bool {
	return q.Type == FieldRepeatableGroup
}

// IsMultiValue reports whether the field stores a list of scalars.
func (q FormQuestion) IsMultiValue() bool {
	return q.Type == FieldMultiSelect || q.Type == FieldCheckboxGroup
}
