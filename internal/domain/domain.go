package domain

import (
	"gorm.io/datatypes"

	"github.com/yungbote/techform-backend/internal/domain/forms"
)

type JSON = datatypes.JSON

const (
	DataSourceStructured = forms.DataSourceStructured
	DataSourceExtended   = forms.DataSourceExtended

	RootTechnology     = forms.RootTechnology
	RootTriageStage    = forms.RootTriageStage
	RootViabilityStage = forms.RootViabilityStage

	SubmissionStatusDraft     = forms.SubmissionStatusDraft
	SubmissionStatusSubmitted = forms.SubmissionStatusSubmitted
)

const (
	FieldShortText       = forms.FieldShortText
	FieldLongText        = forms.FieldLongText
	FieldInteger         = forms.FieldInteger
	FieldNumber          = forms.FieldNumber
	FieldSingleSelect    = forms.FieldSingleSelect
	FieldMultiSelect     = forms.FieldMultiSelect
	FieldCheckboxGroup   = forms.FieldCheckboxGroup
	FieldDate            = forms.FieldDate
	FieldScore           = forms.FieldScore
	FieldRepeatableGroup = forms.FieldRepeatableGroup
)

// Roots lists binding roots in write order.
var Roots = forms.Roots

var (
	TableForRoot = forms.TableForRoot
	RevisionKey  = forms.RevisionKey
)

type Question = forms.Question
type QuestionRevision = forms.QuestionRevision
type RevisionContent = forms.RevisionContent

type FormTemplate = forms.FormTemplate
type FormSection = forms.FormSection
type FormQuestion = forms.FormQuestion

type Technology = forms.Technology
type TriageStage = forms.TriageStage
type ViabilityStage = forms.ViabilityStage

type FormSubmission = forms.FormSubmission
type QuestionResponse = forms.QuestionResponse
type RepeatableGroupResponse = forms.RepeatableGroupResponse
