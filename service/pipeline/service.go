package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/pollevbot/pollevbot/model/poll"
	"github.com/pollevbot/pollevbot/policy"
	"github.com/pollevbot/pollevbot/service/approval"
	"github.com/pollevbot/pollevbot/service/event"
	"github.com/pollevbot/pollevbot/service/generator"
	"github.com/pollevbot/pollevbot/service/responselog"
	"github.com/pollevbot/pollevbot/service/validator"
	"github.com/pollevbot/pollevbot/tracing"
)

// Config represents pipeline configuration
type Config struct {
	// MinOption and MaxOption bound the 0-indexed option window
	// [MinOption, MaxOption) considered on multiple-choice polls.
	// MaxOption <= 0 means no upper bound.
	MinOption int `json:"minOption" yaml:"minOption"`
	MaxOption int `json:"maxOption" yaml:"maxOption"`

	// MaxRetries bounds free-text generation attempts.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`

	// ApprovalTimeout bounds the wait for a remote decision.
	ApprovalTimeout time.Duration `json:"approvalTimeout" yaml:"approvalTimeout"`

	// ConfirmTimeout bounds the local fallback confirmation.
	ConfirmTimeout time.Duration `json:"confirmTimeout" yaml:"confirmTimeout"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		ApprovalTimeout: time.Minute,
		ConfirmTimeout:  time.Minute,
	}
}

// EmptyOptionRangeError reports a configured option window that selects
// nothing; the poll is skipped.
type EmptyOptionRangeError struct {
	Available int
	Min, Max  int
}

func (e *EmptyOptionRangeError) Error() string {
	return fmt.Sprintf("poll only has %d options but minOption was %d and maxOption %d",
		e.Available, e.Min, e.Max)
}

// Service orchestrates the answer for one poll: candidate acquisition,
// validation with retry, the approval hand-off and the response log.
type Service struct {
	config    Config
	generator generator.Service
	validator *validator.Service
	broker    *approval.Service
	confirmer Confirmer
	events    *event.Publisher
	log       *responselog.Service
	random    *rand.Rand
}

// Option customises the pipeline.
type Option func(*Service)

// WithGenerator sets the automated answer backend; nil keeps the random
// fallback for multiple choice.
func WithGenerator(svc generator.Service) Option {
	return func(s *Service) { s.generator = svc }
}

// WithBroker sets the approval broker used for free-text answers.
func WithBroker(broker *approval.Service) Option {
	return func(s *Service) { s.broker = broker }
}

// WithConfirmer sets the local fallback confirmation.
func WithConfirmer(confirmer Confirmer) Option {
	return func(s *Service) { s.confirmer = confirmer }
}

// WithEvents sets the status publisher.
func WithEvents(events *event.Publisher) Option {
	return func(s *Service) { s.events = events }
}

// WithResponseLog sets the response log.
func WithResponseLog(log *responselog.Service) Option {
	return func(s *Service) { s.log = log }
}

// WithRandSource overrides the fallback RNG source.
func WithRandSource(source rand.Source) Option {
	return func(s *Service) { s.random = rand.New(source) }
}

// New creates a pipeline; zero config fields inherit their defaults.
func New(config Config, options ...Option) *Service {
	defaults := DefaultConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.ApprovalTimeout <= 0 {
		config.ApprovalTimeout = defaults.ApprovalTimeout
	}
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = defaults.ConfirmTimeout
	}
	ret := &Service{
		config:    config,
		validator: validator.New(validator.Config{}),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.random == nil {
		ret.random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return ret
}

// WithValidator replaces the default validator thresholds.
func WithValidator(svc *validator.Service) Option {
	return func(s *Service) { s.validator = svc }
}

// Answer produces the final answer for a poll, or nil when nothing should
// be submitted. The poll is already marked seen by the caller, so every
// exit path here is terminal for it.
func (s *Service) Answer(ctx context.Context, record *poll.Record) (*poll.Candidate, error) {
	switch record.Kind {
	case poll.KindFreeText:
		return s.answerFreeText(ctx, record)
	default:
		return s.answerMultipleChoice(ctx, record)
	}
}

// answerMultipleChoice slices the configured option window and either asks
// the generator for a single pick or falls back to uniform random
// selection. Generated picks get a structural check only: no retry, no
// content validation, and by default no human review.
func (s *Service) answerMultipleChoice(ctx context.Context, record *poll.Record) (*poll.Candidate, error) {
	options := s.optionWindow(record)
	if len(options) == 0 {
		err := &EmptyOptionRangeError{
			Available: len(record.Options),
			Min:       s.config.MinOption,
			Max:       s.config.MaxOption,
		}
		s.append(ctx, record, nil, responselog.OutcomeError)
		return nil, err
	}

	var candidate *poll.Candidate
	if s.generator == nil {
		pick := options[s.random.Intn(len(options))]
		candidate = &poll.Candidate{
			OptionID:  pick.ID,
			Reasoning: "random selection",
		}
	} else {
		ctx, span := tracing.StartSpan(ctx, "generator.selectOption", "CLIENT")
		selection, err := s.generator.SelectOption(ctx, record.Title, options)
		tracing.EndSpan(span, err)
		if err != nil {
			s.append(ctx, record, nil, responselog.OutcomeError)
			return nil, &generator.Error{Err: err}
		}
		if selection.OptionIndex < 0 || selection.OptionIndex >= len(options) {
			s.append(ctx, record, nil, responselog.OutcomeError)
			return nil, &generator.Error{Err: fmt.Errorf("selected option %d outside window of %d", selection.OptionIndex, len(options))}
		}
		candidate = &poll.Candidate{
			OptionID:   options[selection.OptionIndex].ID,
			Confidence: selection.Confidence,
			Reasoning:  selection.Reasoning,
		}
		if err := candidate.Validate(); err != nil {
			s.append(ctx, record, nil, responselog.OutcomeError)
			return nil, &generator.Error{Err: err}
		}
		log.Printf("generator selected option %v with confidence %.2f", candidate.OptionID, candidate.Confidence)
	}

	if policy.FromContext(ctx).Denies(record.Kind) {
		s.append(ctx, record, candidate, responselog.OutcomeRejected)
		return nil, nil
	}
	if policy.FromContext(ctx).RequiresApproval(record.Kind) {
		return s.seekApproval(ctx, record, candidate)
	}
	s.append(ctx, record, candidate, responselog.OutcomeSubmitted)
	return candidate, nil
}

// answerFreeText runs the generate-validate retry loop and then hands the
// candidate to the approval flow.
func (s *Service) answerFreeText(ctx context.Context, record *poll.Record) (*poll.Candidate, error) {
	if s.generator == nil {
		s.append(ctx, record, nil, responselog.OutcomeNoAnswer)
		return nil, nil
	}
	candidate, err := s.generateValidated(ctx, record.Title)
	if err != nil {
		s.append(ctx, record, nil, responselog.OutcomeError)
		return nil, err
	}
	if candidate == nil {
		s.events.Publishf(ctx, event.SeverityWarning,
			fmt.Sprintf("could not get a valid response after %d attempts, skipping poll", s.config.MaxRetries))
		s.append(ctx, record, nil, responselog.OutcomeNoAnswer)
		return nil, nil
	}

	if policy.FromContext(ctx).Denies(record.Kind) {
		s.append(ctx, record, candidate, responselog.OutcomeRejected)
		return nil, nil
	}
	if !policy.FromContext(ctx).RequiresApproval(record.Kind) {
		s.append(ctx, record, candidate, responselog.OutcomeSubmitted)
		return candidate, nil
	}
	return s.seekApproval(ctx, record, candidate)
}

// generateValidated makes up to MaxRetries generation calls, validating
// each. It returns the first passing candidate, or nil when every attempt
// failed validation.
func (s *Service) generateValidated(ctx context.Context, question string) (*poll.Candidate, error) {
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		genCtx, span := tracing.StartSpan(ctx, "generator.generateText", "CLIENT")
		candidate, err := s.generator.GenerateText(genCtx, question)
		tracing.EndSpan(span, err)
		if err != nil {
			return nil, &generator.Error{Err: err}
		}
		if err := candidate.Validate(); err != nil {
			return nil, &generator.Error{Err: err}
		}
		violations := s.validator.Validate(candidate)
		if len(violations) == 0 {
			log.Printf("valid response obtained on attempt %d", attempt)
			return candidate, nil
		}
		log.Printf("attempt %d failed validation: %v", attempt, validator.Join(violations))
	}
	return nil, nil
}

// seekApproval offers the candidate to the broker, falling back to the
// local confirmer when no channel is available. A rejected or timed-out
// candidate is dropped.
func (s *Service) seekApproval(ctx context.Context, record *poll.Record, candidate *poll.Candidate) (*poll.Candidate, error) {
	if s.broker != nil {
		requestID, err := s.broker.RequestApproval(ctx, candidate, record.Title)
		if err == nil {
			waitCtx, span := tracing.StartSpan(ctx, "approval.await", "INTERNAL")
			outcome := s.broker.AwaitResolution(waitCtx, requestID, s.config.ApprovalTimeout)
			tracing.EndSpan(span, nil)
			if !outcome.Approved() {
				s.events.Publishf(ctx, event.SeverityWarning, "response cancelled by approver")
				s.append(ctx, record, candidate, responselog.OutcomeRejected)
				return nil, nil
			}
			approved := *candidate
			approved.Text = outcome.Text(candidate.Text)
			s.append(ctx, record, &approved, responselog.OutcomeSubmitted)
			return &approved, nil
		}
		log.Printf("approval channel unavailable, falling back to local confirmation: %v", err)
	}

	if s.confirmer == nil {
		s.append(ctx, record, candidate, responselog.OutcomeRejected)
		return nil, nil
	}
	approved, err := s.confirmer.Confirm(ctx, candidate, record.Title, s.config.ConfirmTimeout)
	if err != nil || !approved {
		s.events.Publishf(ctx, event.SeverityWarning, "response cancelled by user")
		s.append(ctx, record, candidate, responselog.OutcomeRejected)
		return nil, nil
	}
	s.append(ctx, record, candidate, responselog.OutcomeSubmitted)
	return candidate, nil
}

// optionWindow slices [MinOption, MaxOption) out of the poll options.
func (s *Service) optionWindow(record *poll.Record) []poll.Option {
	min := s.config.MinOption
	if min < 0 {
		min = 0
	}
	if min > len(record.Options) {
		return nil
	}
	max := s.config.MaxOption
	if max <= 0 || max > len(record.Options) {
		max = len(record.Options)
	}
	if min >= max {
		return nil
	}
	return record.Options[min:max]
}

func (s *Service) append(ctx context.Context, record *poll.Record, candidate *poll.Candidate, outcome string) {
	if s.log == nil {
		return
	}
	entry := &responselog.Record{
		PollID:    record.ID,
		PollKind:  record.Kind,
		Question:  record.Title,
		Options:   record.Options,
		Outcome:   outcome,
		Submitted: outcome == responselog.OutcomeSubmitted,
	}
	if candidate != nil {
		entry.Answer = candidate.Answer()
		entry.Confidence = candidate.Confidence
		entry.Reasoning = candidate.Reasoning
	}
	s.log.Append(ctx, entry)
}
