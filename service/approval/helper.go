package approval

import (
	"context"
	"time"
)

// DecisionFunc decides what to do with a pending request.
// Return (ActionApprove, nil) to approve,
//
//	(ActionReject, nil)  to reject,
//	(ActionEdit, &text)  to approve with an override.
type DecisionFunc func(r *Request) (Action, *string)

// AutoDecider starts a goroutine that polls ListPending and applies fn to
// every request. It returns stop() - call it (or cancel ctx) to exit.
// Useful for unattended runs and tests.
func AutoDecider(ctx context.Context, svc *Service, fn DecisionFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				for _, r := range svc.ListPending() {
					action, text := fn(r)
					svc.Resolve(r.ID, action, text)
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoApprove automatically approves all pending requests
func AutoApprove(ctx context.Context, svc *Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Request) (Action, *string) { return ActionApprove, nil }, interval)
}

// AutoReject automatically rejects all pending requests
func AutoReject(ctx context.Context, svc *Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Request) (Action, *string) { return ActionReject, nil }, interval)
}
