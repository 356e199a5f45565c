package pollevbot

import (
	"context"

	"github.com/pollevbot/pollevbot/policy"
	"github.com/pollevbot/pollevbot/service/approval"
	"github.com/pollevbot/pollevbot/service/event"
	"github.com/pollevbot/pollevbot/service/generator"
	"github.com/pollevbot/pollevbot/service/pipeline"
	"github.com/pollevbot/pollevbot/service/responselog"
	"github.com/pollevbot/pollevbot/service/session"
	"github.com/pollevbot/pollevbot/service/session/pollev"
	"github.com/pollevbot/pollevbot/service/validator"
	"github.com/pollevbot/pollevbot/service/watcher"
)

// Service is the bot façade: it wires the session, the answer pipeline, the
// approval broker and the watcher loop from one configuration.
type Service struct {
	config *Config

	session       session.Service
	generator     generator.Service
	channel       approval.Channel
	confirmer     pipeline.Confirmer
	events        *event.Publisher
	statusHandler event.Handler
	responseLog   *responselog.Service
	policy        *policy.Policy

	broker   *approval.Service
	pipeline *pipeline.Service
	watcher  *watcher.Service
}

// New creates a bot from the configuration; options override individual
// collaborators.
func New(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	ret := &Service{config: config, policy: config.Policy}
	for _, option := range options {
		option(ret)
	}
	if err := ret.ensureBaseSetup(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) ensureBaseSetup() error {
	if s.session == nil {
		if err := s.config.Validate(); err != nil {
			return err
		}
		sess, err := pollev.New(s.config.Session)
		if err != nil {
			return err
		}
		s.session = sess
	}
	if s.events == nil {
		s.events = event.NewMemoryPublisher()
	}
	if s.responseLog == nil && s.config.ResponseLogURL != "" {
		s.responseLog = responselog.New(s.config.ResponseLogURL)
	}
	if s.confirmer == nil {
		s.confirmer = pipeline.NewTerminalConfirmer()
	}

	brokerOptions := []approval.Option{}
	if s.channel != nil {
		brokerOptions = append(brokerOptions, approval.WithChannel(s.channel))
	}
	s.broker = approval.New(s.config.Approval, brokerOptions...)

	s.pipeline = pipeline.New(s.config.Pipeline,
		pipeline.WithGenerator(s.generator),
		pipeline.WithValidator(validator.New(s.config.Validator)),
		pipeline.WithBroker(s.broker),
		pipeline.WithConfirmer(s.confirmer),
		pipeline.WithEvents(s.events),
		pipeline.WithResponseLog(s.responseLog))

	s.watcher = watcher.New(s.config.Watcher, s.session, s.pipeline, s.events)
	return nil
}

// Broker exposes the approval broker so a transport can push decisions into
// its action queue.
func (s *Service) Broker() *approval.Service { return s.broker }

// Events exposes the status publisher.
func (s *Service) Events() *event.Publisher { return s.events }

// Run executes the bot until its lifetime elapses or ctx is cancelled. Only
// authentication failures are returned; everything else is absorbed by the
// watcher loop.
func (s *Service) Run(ctx context.Context) error {
	if s.policy != nil {
		ctx = policy.WithPolicy(ctx, s.policy)
	}

	s.broker.Start(ctx)
	defer s.broker.Shutdown()

	if s.statusHandler != nil {
		listener := event.NewListener(s.events.Queue(), s.statusHandler)
		listener.Start(ctx)
		defer listener.Stop()
	}
	return s.watcher.Run(ctx)
}
