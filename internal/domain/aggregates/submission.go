package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var SubmissionAggregateContract = Contract{
	Name:             "Forms.SubmissionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Locking:          LockingRowVersionCAS,
	Tables:           []string{"form_submission", "question_response", "repeatable_group_response", "technology", "triage_stage", "viability_stage"},
	Notes: "Owns append-only question_response/repeatable_group_response generations and the " +
		"DRAFT -> SUBMITTED transition; optionally applies binding writes in the same transaction.",
}

// SubmissionAggregate persists drafts and final submissions.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type SubmissionAggregate interface {
	Aggregate

	SaveSubmission(ctx context.Context, in SaveSubmissionInput) (SaveSubmissionResult, error)
}

type SaveSubmissionInput struct {
	// SubmissionID continues an existing draft; nil starts a new one.
	SubmissionID *uuid.UUID
	TemplateID   *uuid.UUID
	TechID       string

	Responses    map[string]any
	RepeatGroups map[string][]map[string]any

	// ExpectedVersion is the submission row_version the caller loaded.
	ExpectedVersion *int
	// Submit transitions the submission from DRAFT to SUBMITTED.
	Submit bool

	// ApplyBindings also writes dictionary-bound answers onto the technology.
	ApplyBindings             bool
	ExpectedRowVersions       RowVersions
	AllowCreateWhenIncomplete bool

	Actor   string
	SavedAt time.Time
}

type SaveSubmissionResult struct {
	SubmissionID     uuid.UUID
	Status           string
	Generation       int
	RowVersion       int
	WrittenResponses int
	WrittenGroupRows int
	Binding          *ApplyBindingWritesResult
}
