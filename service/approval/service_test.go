package approval_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pollevbot/pollevbot/model/poll"
	"github.com/pollevbot/pollevbot/service/approval"
)

// channelFunc adapts a function to the approval.Channel interface.
type channelFunc func(ctx context.Context, requestID string, candidate *poll.Candidate, question string) error

func (f channelFunc) Notify(ctx context.Context, requestID string, candidate *poll.Candidate, question string) error {
	return f(ctx, requestID, candidate, question)
}

func okChannel(captured *string) approval.Channel {
	return channelFunc(func(_ context.Context, requestID string, _ *poll.Candidate, _ string) error {
		if captured != nil {
			*captured = requestID
		}
		return nil
	})
}

func testConfig() approval.Config {
	return approval.Config{
		PollInterval:   5 * time.Millisecond,
		ReaperInterval: time.Minute,
		TTL:            10 * time.Minute,
	}
}

func candidate() *poll.Candidate {
	return &poll.Candidate{Text: "probably pizza", Confidence: 0.9}
}

func TestRequestApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("no channel", func(t *testing.T) {
		svc := approval.New(testConfig())
		_, err := svc.RequestApproval(ctx, candidate(), "q")
		assert.ErrorIs(t, err, approval.ErrNoChannel)
		assert.Empty(t, svc.ListPending())
	})

	t.Run("notify failure withdraws record", func(t *testing.T) {
		notifyErr := errors.New("transport down")
		svc := approval.New(testConfig(), approval.WithChannel(
			channelFunc(func(context.Context, string, *poll.Candidate, string) error {
				return notifyErr
			})))
		_, err := svc.RequestApproval(ctx, candidate(), "q")
		assert.ErrorIs(t, err, notifyErr)
		assert.Empty(t, svc.ListPending())
	})

	t.Run("success registers pending record", func(t *testing.T) {
		var notified string
		svc := approval.New(testConfig(), approval.WithChannel(okChannel(&notified)))
		id, err := svc.RequestApproval(ctx, candidate(), "favourite food?")
		assert.NoError(t, err)
		assert.Equal(t, id, notified)

		pending := svc.ListPending()
		if assert.Len(t, pending, 1) {
			assert.Equal(t, id, pending[0].ID)
			assert.Equal(t, approval.StatusPending, pending[0].Status)
			assert.Equal(t, "favourite food?", pending[0].Question)
		}
	})
}

func TestAwaitResolution(t *testing.T) {
	ctx := context.Background()

	type testCase struct {
		name         string
		action       approval.Action
		modifiedText *string
		delay        time.Duration
		timeout      time.Duration
		expected     approval.Outcome
	}

	edited := "edited answer"
	tests := []testCase{{
		name:     "approved before timeout",
		action:   approval.ActionApprove,
		delay:    10 * time.Millisecond,
		timeout:  500 * time.Millisecond,
		expected: approval.Outcome{Status: approval.StatusApproved},
	}, {
		name:     "rejected before timeout",
		action:   approval.ActionReject,
		delay:    10 * time.Millisecond,
		timeout:  500 * time.Millisecond,
		expected: approval.Outcome{Status: approval.StatusRejected},
	}, {
		name:         "edit approves with override",
		action:       approval.ActionEdit,
		modifiedText: &edited,
		delay:        10 * time.Millisecond,
		timeout:      500 * time.Millisecond,
		expected:     approval.Outcome{Status: approval.StatusApproved, ModifiedText: &edited},
	}, {
		name:     "timeout force-rejects",
		action:   approval.ActionApprove,
		delay:    time.Hour, // never delivered
		timeout:  30 * time.Millisecond,
		expected: approval.Outcome{Status: approval.StatusRejected, TimedOut: true},
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := approval.New(testConfig(), approval.WithChannel(okChannel(nil)))
			id, err := svc.RequestApproval(ctx, candidate(), "q")
			assert.NoError(t, err)

			if tc.delay < time.Minute {
				go func() {
					time.Sleep(tc.delay)
					svc.Resolve(id, tc.action, tc.modifiedText)
				}()
			}

			started := time.Now()
			outcome := svc.AwaitResolution(ctx, id, tc.timeout)
			assert.EqualValues(t, tc.expected, outcome)
			assert.Less(t, time.Since(started), tc.timeout+200*time.Millisecond,
				"waiter must return within timeout plus slack")

			// removal happened exactly once; a second waiter finds nothing
			assert.EqualValues(t,
				approval.Outcome{Status: approval.StatusExpired},
				svc.AwaitResolution(ctx, id, 10*time.Millisecond))
		})
	}
}

func TestAwaitResolutionUnknownID(t *testing.T) {
	svc := approval.New(testConfig(), approval.WithChannel(okChannel(nil)))
	outcome := svc.AwaitResolution(context.Background(), "never-registered", 20*time.Millisecond)
	assert.EqualValues(t, approval.Outcome{Status: approval.StatusExpired}, outcome)
}

func TestResolveFirstTransitionWins(t *testing.T) {
	ctx := context.Background()
	svc := approval.New(testConfig(), approval.WithChannel(okChannel(nil)))
	id, _ := svc.RequestApproval(ctx, candidate(), "q")

	assert.True(t, svc.Resolve(id, approval.ActionApprove, nil))
	assert.False(t, svc.Resolve(id, approval.ActionReject, nil), "duplicate action must be discarded")

	outcome := svc.AwaitResolution(ctx, id, time.Second)
	assert.EqualValues(t, approval.Outcome{Status: approval.StatusApproved}, outcome)
}

func TestExactlyOneWaiterClaimsOutcome(t *testing.T) {
	ctx := context.Background()
	svc := approval.New(testConfig(), approval.WithChannel(okChannel(nil)))
	id, _ := svc.RequestApproval(ctx, candidate(), "q")

	const waiters = 8
	outcomes := make([]approval.Outcome, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = svc.AwaitResolution(ctx, id, 500*time.Millisecond)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	svc.Resolve(id, approval.ActionApprove, nil)
	wg.Wait()

	approved, expired := 0, 0
	for _, outcome := range outcomes {
		switch outcome.Status {
		case approval.StatusApproved:
			approved++
		case approval.StatusExpired:
			expired++
		default:
			t.Fatalf("unexpected outcome %+v", outcome)
		}
	}
	assert.Equal(t, 1, approved, "exactly one waiter observes the terminal outcome")
	assert.Equal(t, waiters-1, expired)
}

func TestReaperExpiresOrphans(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := approval.New(approval.Config{
		PollInterval:   5 * time.Millisecond,
		ReaperInterval: 10 * time.Millisecond,
		TTL:            30 * time.Millisecond,
	}, approval.WithChannel(okChannel(nil)))
	svc.Start(ctx)
	defer svc.Shutdown()

	id, err := svc.RequestApproval(ctx, candidate(), "q")
	assert.NoError(t, err)

	// No waiter ever registers; the reaper must force-reject and remove.
	assert.Eventually(t, func() bool {
		return len(svc.ListPending()) == 0
	}, time.Second, 10*time.Millisecond)

	outcome := svc.AwaitResolution(ctx, id, 10*time.Millisecond)
	assert.EqualValues(t, approval.Outcome{Status: approval.StatusExpired}, outcome)
}

func TestListenerResolvesRemoteActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := approval.New(testConfig(), approval.WithChannel(okChannel(nil)))
	svc.Start(ctx)
	defer svc.Shutdown()

	id, err := svc.RequestApproval(ctx, candidate(), "q")
	assert.NoError(t, err)

	edited := "better answer"
	err = svc.Actions().Publish(ctx, &approval.RemoteAction{
		RequestID:    id,
		Action:       approval.ActionEdit,
		ModifiedText: &edited,
	})
	assert.NoError(t, err)

	outcome := svc.AwaitResolution(ctx, id, time.Second)
	assert.EqualValues(t, approval.Outcome{Status: approval.StatusApproved, ModifiedText: &edited}, outcome)
	assert.Equal(t, "better answer", outcome.Text("original"))
}

func TestAutoDecider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := approval.New(testConfig(), approval.WithChannel(okChannel(nil)))
	stop := approval.AutoApprove(ctx, svc, 5*time.Millisecond)
	defer stop()

	id, err := svc.RequestApproval(ctx, candidate(), "q")
	assert.NoError(t, err)

	outcome := svc.AwaitResolution(ctx, id, time.Second)
	assert.True(t, outcome.Approved())
}
