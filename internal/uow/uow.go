package uow

import (
	"context"
)

// AfterCommit is a function that runs after the unit of work succeeds.
type AfterCommit func(ctx context.Context)

// UoW groups ledger writes with the side effects that may only happen once
// those writes are durable: broadcasts, notifications, cache eviction.
type UoW struct{}

func New() *UoW {
	return &UoW{}
}

// Do runs fn. Hooks registered through after run in registration order
// only when fn returns nil, with a context detached from the caller's
// cancellation.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := fn(ctx, func(h AfterCommit) {
		hooks = append(hooks, h)
	})
	if err != nil {
		return err
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, h := range hooks {
		h(hookCtx)
	}

	return nil
}
