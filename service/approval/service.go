package approval

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pollevbot/pollevbot/internal/clock"
	"github.com/pollevbot/pollevbot/internal/idgen"
	"github.com/pollevbot/pollevbot/model/poll"
	"github.com/pollevbot/pollevbot/service/messaging"
	"github.com/pollevbot/pollevbot/service/messaging/memory"
)

// Config represents broker configuration
type Config struct {
	// PollInterval is how often a waiter re-checks its record for a decision
	PollInterval time.Duration

	// ReaperInterval is how often the reaper scans for orphaned records
	ReaperInterval time.Duration

	// TTL is the maximum age a Pending record may reach before forced expiry
	TTL time.Duration
}

// DefaultConfig returns the default broker configuration
func DefaultConfig() Config {
	return Config{
		PollInterval:   500 * time.Millisecond,
		ReaperInterval: time.Minute,
		TTL:            10 * time.Minute,
	}
}

// Service is the approval broker: a concurrent store of in-flight approval
// requests coordinating three parties - the inbound action listener that
// resolves them, the waiter blocked in AwaitResolution, and the periodic
// reaper that expires orphans.
//
// Every read-check-modify-or-delete sequence against the pending table runs
// under one mutex, so no two parties can observe the same record as Pending
// and commit conflicting terminal outcomes, and removal happens exactly once.
type Service struct {
	config  Config
	channel Channel

	mu      sync.Mutex
	pending map[string]*Request

	actions messaging.Queue[RemoteAction]

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// Option customises the broker.
type Option func(*Service)

// WithChannel sets the outbound approval transport.
func WithChannel(channel Channel) Option {
	return func(s *Service) { s.channel = channel }
}

// WithActionQueue overrides the inbound action queue; transports publish
// RemoteAction values into it.
func WithActionQueue(queue messaging.Queue[RemoteAction]) Option {
	return func(s *Service) { s.actions = queue }
}

// New creates a broker with the supplied configuration; zero durations
// inherit their defaults.
func New(config Config, options ...Option) *Service {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ReaperInterval <= 0 {
		config.ReaperInterval = defaults.ReaperInterval
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	ret := &Service{
		config:     config,
		pending:    make(map[string]*Request),
		actions:    memory.NewQueue[RemoteAction](memory.DefaultConfig()),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Actions exposes the inbound queue so a transport can push decisions.
func (s *Service) Actions() messaging.Queue[RemoteAction] { return s.actions }

// Start launches the inbound action listener and the reaper. Both run until
// Shutdown is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.listen(ctx)
	go s.reap(ctx)
}

// Shutdown stops the background workers. Safe to call more than once.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// RequestApproval allocates a fresh request id, registers a Pending record
// and notifies the approval channel. On notification failure the record is
// withdrawn and the error returned, leaving the caller to its local
// fallback.
func (s *Service) RequestApproval(ctx context.Context, candidate *poll.Candidate, question string) (string, error) {
	if s.channel == nil {
		return "", ErrNoChannel
	}
	request := &Request{
		ID:        idgen.New(),
		Candidate: candidate,
		Question:  question,
		CreatedAt: clock.Now(),
		Status:    StatusPending,
	}

	s.mu.Lock()
	s.pending[request.ID] = request
	s.mu.Unlock()

	if err := s.channel.Notify(ctx, request.ID, candidate, question); err != nil {
		s.mu.Lock()
		delete(s.pending, request.ID)
		s.mu.Unlock()
		return "", err
	}
	log.Printf("sent request %v for approval", request.ID)
	return request.ID, nil
}

// Resolve applies a remote action to a pending record. The first transition
// wins: if the record is missing or already terminal the action is silently
// discarded and Resolve reports false.
func (s *Service) Resolve(requestID string, action Action, modifiedText *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.pending[requestID]
	if !ok || request.Status != StatusPending {
		return false
	}
	switch action {
	case ActionApprove:
		request.Status = StatusApproved
	case ActionEdit:
		request.Status = StatusApproved
		request.ModifiedText = modifiedText
	case ActionReject:
		request.Status = StatusRejected
	default:
		return false
	}
	return true
}

// AwaitResolution blocks until the record leaves Pending or timeout elapses,
// re-checking the table on the configured interval. Exactly one of
// {this waiter, the reaper} removes the record; whichever finds it already
// gone reports StatusExpired, a benign outcome.
func (s *Service) AwaitResolution(ctx context.Context, requestID string, timeout time.Duration) Outcome {
	deadline := clock.Now().Add(timeout)
	for {
		if outcome, done := s.claimTerminal(requestID); done {
			return outcome
		}
		if ctx.Err() != nil || !clock.Now().Before(deadline) {
			break
		}
		remaining := deadline.Sub(clock.Now())
		if remaining > s.config.PollInterval {
			remaining = s.config.PollInterval
		}
		clock.Sleep(remaining)
	}

	// Timed out: force-reject, unless another party claimed the record in
	// the window since the last check.
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.pending[requestID]
	if !ok {
		return Outcome{Status: StatusExpired}
	}
	delete(s.pending, requestID)
	if request.Status != StatusPending {
		return Outcome{Status: request.Status, ModifiedText: request.ModifiedText}
	}
	request.Status = StatusRejected
	return Outcome{Status: StatusRejected, TimedOut: true}
}

// claimTerminal removes and returns the record when it has left Pending, or
// reports StatusExpired when the record is already gone.
func (s *Service) claimTerminal(requestID string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.pending[requestID]
	if !ok {
		return Outcome{Status: StatusExpired}, true
	}
	if request.Status == StatusPending {
		return Outcome{}, false
	}
	delete(s.pending, requestID)
	return Outcome{Status: request.Status, ModifiedText: request.ModifiedText}, true
}

// ListPending returns a snapshot of the records still awaiting a decision.
func (s *Service) ListPending() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, 0, len(s.pending))
	for _, request := range s.pending {
		if request.Status == StatusPending {
			copied := *request
			out = append(out, &copied)
		}
	}
	return out
}

// listen consumes inbound actions and resolves their requests.
func (s *Service) listen(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-s.shutdownCh
		cancel()
	}()
	for {
		msg, err := s.actions.Consume(ctx)
		if err != nil {
			return
		}
		action := msg.T()
		if !s.Resolve(action.RequestID, action.Action, action.ModifiedText) {
			log.Printf("discarded late action %v for request %v", action.Action, action.RequestID)
		}
		_ = msg.Ack()
	}
}

// reap periodically force-rejects and removes Pending records older than the
// TTL, guarding against orphaned requests whose waiter never registered or
// crashed.
func (s *Service) reap(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			s.reapExpired()
		}
	}
}

func (s *Service) reapExpired() {
	cutoff := clock.Now().Add(-s.config.TTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, request := range s.pending {
		if request.Status != StatusPending || request.CreatedAt.After(cutoff) {
			continue
		}
		request.Status = StatusRejected
		delete(s.pending, id)
		log.Printf("request %v expired and auto-rejected", id)
	}
}
