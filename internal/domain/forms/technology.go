package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Binding roots. The json tag of every answerable field on the record behind a
// root is the second segment of a binding path ("triageStage.marketScore").
// Fields tagged answer:"-" are system columns and never bindable.
const (
	RootTechnology     = "technology"
	RootTriageStage    = "triageStage"
	RootViabilityStage = "viabilityStage"
)

// Roots lists binding roots in write order; the technology row comes first.
var Roots = []string{RootTechnology, RootTriageStage, RootViabilityStage}

// Technology is the subject entity forms describe.
type Technology struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" answer:"-"`

	TechID           string `gorm:"column:tech_id;not null;uniqueIndex" json:"techId"`
	TechnologyName   string `gorm:"column:technology_name;not null" json:"technologyName"`
	ShortDescription string `gorm:"column:short_description" json:"shortDescription"`
	InventorName     string `gorm:"column:inventor_name" json:"inventorName"`
	InventorTitle    string `gorm:"column:inventor_title" json:"inventorTitle"`
	InventorDept     string `gorm:"column:inventor_dept" json:"inventorDept"`
	ReviewerName     string `gorm:"column:reviewer_name" json:"reviewerName"`
	DomainAssetClass string `gorm:"column:domain_asset_class" json:"domainAssetClass"`
	CurrentStage     string `gorm:"column:current_stage;not null;default:TRIAGE" json:"currentStage"`
	Status           string `gorm:"column:status;not null;default:ACTIVE" json:"status"`

	LastModifiedBy string         `gorm:"column:last_modified_by" json:"lastModifiedBy" answer:"-"`
	ExtendedData   datatypes.JSON `gorm:"column:extended_data;type:jsonb" json:"extendedData,omitempty" answer:"-"`
	RowVersion     int            `gorm:"column:row_version;not null;default:0" json:"rowVersion" answer:"-"`

	TriageStage    *TriageStage    `gorm:"foreignKey:TechnologyID" json:"triageStage,omitempty" answer:"-"`
	ViabilityStage *ViabilityStage `gorm:"foreignKey:TechnologyID" json:"viabilityStage,omitempty" answer:"-"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt" answer:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt" answer:"-"`
}

func (Technology) TableName() string { return "technology" }

func (t *Technology) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TriageStage is the first review stage of a technology.
type TriageStage struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" answer:"-"`
	TechnologyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"technologyId" answer:"-"`

	TechnologyOverview    string         `gorm:"column:technology_overview" json:"technologyOverview"`
	MissionAlignmentText  string         `gorm:"column:mission_alignment_text" json:"missionAlignmentText"`
	MissionAlignmentScore *int           `gorm:"column:mission_alignment_score" json:"missionAlignmentScore"`
	UnmetNeedText         string         `gorm:"column:unmet_need_text" json:"unmetNeedText"`
	UnmetNeedScore        *int           `gorm:"column:unmet_need_score" json:"unmetNeedScore"`
	StateOfArtText        string         `gorm:"column:state_of_art_text" json:"stateOfArtText"`
	StateOfArtScore       *int           `gorm:"column:state_of_art_score" json:"stateOfArtScore"`
	MarketOverview        string         `gorm:"column:market_overview" json:"marketOverview"`
	MarketScore           *int           `gorm:"column:market_score" json:"marketScore"`
	ImpactScore           *float64       `gorm:"column:impact_score" json:"impactScore"`
	ValueScore            *float64       `gorm:"column:value_score" json:"valueScore"`
	Recommendation        string         `gorm:"column:recommendation" json:"recommendation"`
	RecommendationNotes   string         `gorm:"column:recommendation_notes" json:"recommendationNotes"`
	Competitors           datatypes.JSON `gorm:"column:competitors;type:jsonb" json:"competitors"`
	SMEConsultants        datatypes.JSON `gorm:"column:sme_consultants;type:jsonb" json:"smeConsultants"`
	ReviewedAt            *time.Time     `gorm:"column:reviewed_at" json:"reviewedAt"`

	ExtendedData datatypes.JSON `gorm:"column:extended_data;type:jsonb" json:"extendedData,omitempty" answer:"-"`
	RowVersion   int            `gorm:"column:row_version;not null;default:0" json:"rowVersion" answer:"-"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt" answer:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt" answer:"-"`
}

func (TriageStage) TableName() string { return "triage_stage" }

func (s *TriageStage) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ViabilityStage is the follow-up stage once a technology passes triage.
type ViabilityStage struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" answer:"-"`
	TechnologyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"technologyId" answer:"-"`

	TechnicalFeasibility string     `gorm:"column:technical_feasibility" json:"technicalFeasibility"`
	IPStrategy           string     `gorm:"column:ip_strategy" json:"ipStrategy"`
	MarketValidation     string     `gorm:"column:market_validation" json:"marketValidation"`
	ResourceRequirements string     `gorm:"column:resource_requirements" json:"resourceRequirements"`
	RiskAssessment       string     `gorm:"column:risk_assessment" json:"riskAssessment"`
	TechnicalScore       *int       `gorm:"column:technical_score" json:"technicalScore"`
	CommercialScore      *int       `gorm:"column:commercial_score" json:"commercialScore"`
	OverallViability     string     `gorm:"column:overall_viability" json:"overallViability"`
	DecisionDate         *time.Time `gorm:"column:decision_date" json:"decisionDate"`

	ExtendedData datatypes.JSON `gorm:"column:extended_data;type:jsonb" json:"extendedData,omitempty" answer:"-"`
	RowVersion   int            `gorm:"column:row_version;not null;default:0" json:"rowVersion" answer:"-"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt" answer:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt" answer:"-"`
}

func (ViabilityStage) TableName() string { return "viability_stage" }

func (s *ViabilityStage) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableForRoot maps a binding root to its table name.
func TableForRoot(root string) string {
	switch root {
	case RootTechnology:
		return Technology{}.TableName()
	case RootTriageStage:
		return TriageStage{}.TableName()
	case RootViabilityStage:
		return ViabilityStage{}.TableName()
	default:
		return ""
	}
}
