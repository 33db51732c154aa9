package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/techform-backend/internal/data/aggregates"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
)

// FaultyTxRunner wraps a real runner and fails at chosen points. A commit
// failure is raised from inside the inner transaction so its writes roll back.
type FaultyTxRunner struct {
	Inner aggregates.TxRunner

	FailBegin  error
	FailCommit error

	mu        sync.Mutex
	Begins    int
	Commits   int
	Rollbacks int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.count(&r.Begins)
	if r.FailBegin != nil {
		return r.FailBegin
	}
	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return r.FailCommit
	}
	var err error
	if r.Inner == nil {
		err = body(dbctx.Context{Ctx: ctx})
	} else {
		err = r.Inner.InTx(ctx, body)
	}
	if err != nil {
		r.count(&r.Rollbacks)
		return err
	}
	r.count(&r.Commits)
	return nil
}

func (r *FaultyTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
