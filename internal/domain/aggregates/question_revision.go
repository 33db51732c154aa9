package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

var QuestionRevisionAggregateContract = Contract{
	Name:             "Forms.QuestionRevisionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Locking:          LockingRowVersionCAS,
	Tables:           []string{"question", "question_revision"},
	Notes:            "Owns the append-only revision history of dictionary questions and their current revision pointer.",
}

// QuestionRevisionAggregate is the only writer of question revisions.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type QuestionRevisionAggregate interface {
	Aggregate

	// CreateQuestion creates a dictionary question together with revision 1.
	CreateQuestion(ctx context.Context, in CreateQuestionInput) (CreateQuestionResult, error)

	// CreateRevision appends the next revision and advances the question's pointer.
	CreateRevision(ctx context.Context, in CreateRevisionInput) (CreateRevisionResult, error)
}

type RevisionContent struct {
	Label      string
	HelpText   string
	Options    json.RawMessage
	Validation json.RawMessage
}

type CreateQuestionInput struct {
	Key         string
	BindingPath string
	DataSource  string
	Content     RevisionContent
	CreatedBy   string
	CreatedAt   time.Time
}

type CreateQuestionResult struct {
	QuestionID    uuid.UUID
	RevisionID    uuid.UUID
	VersionNumber int
	CreatedAt     time.Time
}

type CreateRevisionInput struct {
	QuestionKey  string
	Content      RevisionContent
	Significant  bool
	ChangeReason string
	CreatedBy    string
	// ExpectedQuestionVersion, when set, must equal the question's row_version.
	ExpectedQuestionVersion *int
	CreatedAt               time.Time
}

type CreateRevisionResult struct {
	QuestionID    uuid.UUID
	RevisionID    uuid.UUID
	VersionNumber int
	Significant   bool
	CreatedAt     time.Time
}
