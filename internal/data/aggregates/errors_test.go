package aggregates

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	pkgerrors "github.com/yungbote/techform-backend/internal/pkg/errors"
	"gorm.io/gorm"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}

func TestMapError_OptimisticLockKeepsCauseAndHint(t *testing.T) {
	v := 4
	lock := &domainagg.OptimisticLockError{Table: "technology", ExpectedVersion: &v}
	err := MapError("op", lock)
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
	if !domainagg.IsOptimisticLock(err) {
		t.Fatalf("expected lock error to survive mapping: %v", err)
	}
	hints := pkgerrors.GetAllHints(err)
	if len(hints) != 1 || hints[0] != domainagg.LockConflictHint {
		t.Fatalf("hints: want=[%q] got=%v", domainagg.LockConflictHint, hints)
	}
}

func TestMapError_SQLiteUniqueIsConflict(t *testing.T) {
	err := MapError("op", errors.New("UNIQUE constraint failed: question.key"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PostgresStates(t *testing.T) {
	cases := map[string]domainagg.ErrorCode{
		"23505": domainagg.CodeConflict,
		"23503": domainagg.CodePreconditionFailed,
		"23514": domainagg.CodeValidation,
		"40P01": domainagg.CodeRetryable,
		"XX000": domainagg.CodeInternal,
	}
	for state, want := range cases {
		err := MapError("op", &pgconn.PgError{Code: state, Message: "boom"})
		if !domainagg.IsCode(err, want) {
			t.Fatalf("state %s: want=%s got=%s", state, want, domainagg.CodeOf(err))
		}
	}
}

func TestMapError_SQLiteForeignKeyIsPrecondition(t *testing.T) {
	err := MapError("op", errors.New("FOREIGN KEY constraint failed"))
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("want precondition_failed, got %q (%v)", domainagg.CodeOf(err), err)
	}
}
