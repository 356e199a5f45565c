package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pollevbot/pollevbot/internal/clock"
	"github.com/pollevbot/pollevbot/service/event"
	"github.com/pollevbot/pollevbot/service/pipeline"
	"github.com/pollevbot/pollevbot/service/session"
	"github.com/pollevbot/pollevbot/tracing"
)

// Config represents watcher configuration
type Config struct {
	// ClosedWait is the pause between probes while no poll is open.
	ClosedWait time.Duration `json:"closedWait" yaml:"closedWait"`

	// OpenWait is the pause between detecting a poll and answering it.
	OpenWait time.Duration `json:"openWait" yaml:"openWait"`

	// Lifetime bounds the run; zero means run until ctx is cancelled.
	Lifetime time.Duration `json:"lifetime" yaml:"lifetime"`

	// HeartbeatEvery emits a liveness status every N probes.
	HeartbeatEvery int `json:"heartbeatEvery" yaml:"heartbeatEvery"`

	// StatusThrottle suppresses repeated idle status messages.
	StatusThrottle time.Duration `json:"statusThrottle" yaml:"statusThrottle"`
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		ClosedWait:     5 * time.Second,
		OpenWait:       time.Minute,
		HeartbeatEvery: 10,
		StatusThrottle: time.Minute,
	}
}

// Service drives the outer loop: probe the feed, deduplicate poll ids,
// hand each newly seen poll to the answer pipeline and submit the result.
//
// The answered set is touched only by this single loop; the service is not
// safe for concurrent Run calls or concurrent probes.
type Service struct {
	config   Config
	session  session.Service
	pipeline *pipeline.Service
	events   *event.Publisher

	answered   map[string]struct{}
	lastStatus time.Time
	probeCount int
}

// New creates a watcher; zero config fields inherit their defaults.
func New(config Config, sess session.Service, pipe *pipeline.Service, events *event.Publisher) *Service {
	defaults := DefaultConfig()
	if config.ClosedWait <= 0 {
		config.ClosedWait = defaults.ClosedWait
	}
	if config.OpenWait < 0 {
		config.OpenWait = defaults.OpenWait
	}
	if config.HeartbeatEvery <= 0 {
		config.HeartbeatEvery = defaults.HeartbeatEvery
	}
	if config.StatusThrottle <= 0 {
		config.StatusThrottle = defaults.StatusThrottle
	}
	return &Service{
		config:   config,
		session:  sess,
		pipeline: pipe,
		events:   events,
		answered: make(map[string]struct{}),
	}
}

// Answered reports whether a poll id has already been processed in this
// run.
func (s *Service) Answered(pollID string) bool {
	_, ok := s.answered[pollID]
	return ok
}

// Run executes the loop until the lifetime elapses or ctx is cancelled.
// Only authentication failures terminate it early; every other condition
// is recovered within its iteration.
func (s *Service) Run(ctx context.Context) error {
	s.events.Publishf(ctx, event.SeverityInfo, "bot starting")
	if err := s.session.Login(ctx); err != nil {
		s.events.Publishf(ctx, event.SeverityDanger, fmt.Sprintf("error: %v", err))
		return err
	}
	s.events.Publishf(ctx, event.SeveritySuccess, "successfully logged in")

	token, err := s.session.FeedToken(ctx)
	if err != nil {
		s.events.Publishf(ctx, event.SeverityDanger, fmt.Sprintf("error: %v", err))
		return err
	}
	s.events.Publishf(ctx, event.SeveritySuccess, "connected to the poll feed")

	deadline := time.Time{}
	if s.config.Lifetime > 0 {
		deadline = clock.Now().Add(s.config.Lifetime)
	}

	for s.alive(ctx, deadline) {
		s.probeCount++
		if s.probeCount%s.config.HeartbeatEvery == 0 {
			s.events.Publishf(ctx, event.SeverityInfo, "bot is running and checking for polls")
		}

		detection, err := s.detect(ctx, token)
		if err != nil {
			var expired *session.SubscriptionExpiredError
			if errors.As(err, &expired) {
				s.events.Publishf(ctx, event.SeverityWarning, "feed subscription expired, refreshing token")
				if token, err = s.session.FeedToken(ctx); err != nil {
					s.events.Publishf(ctx, event.SeverityDanger, fmt.Sprintf("error: %v", err))
					return err
				}
				continue
			}
			// unexpected probe failures count as "no poll open"
			log.Printf("probe failed: %v", err)
			detection = nil
		}

		if detection == nil {
			now := clock.Now()
			if s.lastStatus.IsZero() || now.Sub(s.lastStatus) > s.config.StatusThrottle {
				s.events.Publishf(ctx, event.SeverityInfo,
					fmt.Sprintf("no new polls found, checking again in %v", s.config.ClosedWait))
				s.lastStatus = now
			}
			clock.Sleep(s.config.ClosedWait)
			continue
		}

		s.events.Publishf(ctx, event.SeveritySuccess,
			fmt.Sprintf("new poll detected, waiting %v before responding", s.config.OpenWait))
		clock.Sleep(s.config.OpenWait)
		s.answerPoll(ctx, detection)
	}
	return nil
}

// alive reports whether the loop should take another turn. The lifetime is
// checked once per iteration: shutdown is observed between iterations,
// never during an in-flight call.
func (s *Service) alive(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return false
	}
	return deadline.IsZero() || !clock.Now().After(deadline)
}

// detect probes the feed and applies the dedup guarantee: an id already in
// the answered set is suppressed, and a fresh id enters the set before any
// answer is attempted, so a never-submitted candidate still counts as
// seen.
func (s *Service) detect(ctx context.Context, token string) (*session.Detection, error) {
	probeCtx, span := tracing.StartSpan(ctx, "feed.probe", "CLIENT")
	detection, err := s.session.Probe(probeCtx, token)
	tracing.EndSpan(span, err)
	if err != nil || detection == nil {
		return nil, err
	}
	if _, seen := s.answered[detection.ID]; seen {
		return nil, nil
	}
	s.answered[detection.ID] = struct{}{}
	return detection, nil
}

// answerPoll resolves a single detection end to end. Every failure is
// local to the poll: it is reported and the loop moves on.
func (s *Service) answerPoll(ctx context.Context, detection *session.Detection) {
	log.Printf("answering poll %v of kind %v", detection.ID, detection.Kind)

	record, err := s.session.PollDetail(ctx, detection)
	if err != nil {
		s.events.Publishf(ctx, event.SeverityWarning, fmt.Sprintf("could not fetch poll %v: %v", detection.ID, err))
		return
	}

	candidate, err := s.pipeline.Answer(ctx, record)
	if err != nil {
		s.events.Publishf(ctx, event.SeverityWarning, fmt.Sprintf("could not answer poll %v: %v", record.ID, err))
		return
	}
	if candidate == nil {
		s.events.Publishf(ctx, event.SeverityWarning, "no answer submitted for poll")
		return
	}

	submitCtx, span := tracing.StartSpan(ctx, "poll.submit", "CLIENT")
	err = s.session.SubmitAnswer(submitCtx, record, candidate)
	tracing.EndSpan(span, err)
	if err != nil {
		s.events.Publishf(ctx, event.SeverityWarning, fmt.Sprintf("submission failed for poll %v: %v", record.ID, err))
		return
	}
	s.events.Publishf(ctx, event.SeveritySuccess, "successfully answered poll")
}
