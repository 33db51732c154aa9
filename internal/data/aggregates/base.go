package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// BaseDeps is shared by every forms aggregate. Only DB is required.
type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	return d
}

// executeWrite runs fn in one transaction and reports the outcome to hooks.
// Errors leave here already mapped to a domainagg code.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	if op = strings.TrimSpace(op); op == "" {
		op = "Forms.write"
	}

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else {
		err = deps.Runner.InTx(ctx, fn)
	}
	mapped := MapError(op, err)

	status := aggregateErrorStatus(mapped)
	switch {
	case mapped == nil:
	case domainagg.IsOptimisticLock(mapped):
		deps.Hooks.IncConflict(op)
		deps.Log.Debug("write lost optimistic lock", "op", op, "error", mapped)
	case domainagg.IsCode(mapped, domainagg.CodeConflict):
		deps.Hooks.IncConflict(op)
	case domainagg.IsCode(mapped, domainagg.CodeRetryable):
		deps.Hooks.IncRetry(op)
		deps.Log.Warn("write failed, retryable", "op", op, "error", mapped)
	case domainagg.IsCode(mapped, domainagg.CodeInternal), domainagg.IsCode(mapped, domainagg.CodeInvariantViolation):
		deps.Log.Error("write failed", "op", op, "status", status, "error", mapped)
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("Forms.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
