package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var AnswerAggregateContract = Contract{
	Name:             "Forms.AnswerAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Locking:          LockingRowVersionCAS,
	Tables:           []string{"technology", "triage_stage", "viability_stage"},
	Notes: "Owns atomic binding writes across technology/triage_stage/viability_stage columns and " +
		"their extended_data answer metadata under row_version compare-and-set.",
}

// AnswerAggregate applies submitted answers onto the subject technology.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
// Row version conflicts always wrap an *OptimisticLockError.
type AnswerAggregate interface {
	Aggregate

	// ApplyBindingWrites writes dictionary-bound answers to their structured columns and
	// stamps answer metadata, all in one transaction.
	ApplyBindingWrites(ctx context.Context, in ApplyBindingWritesInput) (ApplyBindingWritesResult, error)
}

// RowVersions maps a binding root to the row_version of the record behind it.
// A missing root means the caller has not seen that record.
type RowVersions map[string]int

// Clone returns an independent copy.
func (v RowVersions) Clone() RowVersions {
	out := make(RowVersions, len(v))
	for k, n := range v {
		out[k] = n
	}
	return out
}

// Lookup returns the version for root and whether one was supplied.
func (v RowVersions) Lookup(root string) (int, bool) {
	if v == nil {
		return 0, false
	}
	n, ok := v[root]
	return n, ok
}

type ApplyBindingWritesInput struct {
	// TemplateID selects the template; nil uses the active one.
	TemplateID *uuid.UUID
	// TechID identifies the technology; empty means create.
	TechID string

	Responses    map[string]any
	RepeatGroups map[string][]map[string]any

	ExpectedRowVersions RowVersions

	// AllowCreateWhenIncomplete lets draft saves create a technology without identifying fields.
	AllowCreateWhenIncomplete bool

	Actor     string
	WrittenAt time.Time
}

type ApplyBindingWritesResult struct {
	TechnologyID uuid.UUID
	TechID       string
	Created      bool
	RowVersions  RowVersions
	// StampedKeys lists dictionary keys whose answer metadata was (re)stamped.
	StampedKeys []string
}
