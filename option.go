package pollevbot

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pollevbot/pollevbot/policy"
	"github.com/pollevbot/pollevbot/service/approval"
	"github.com/pollevbot/pollevbot/service/event"
	"github.com/pollevbot/pollevbot/service/generator"
	"github.com/pollevbot/pollevbot/service/pipeline"
	"github.com/pollevbot/pollevbot/service/responselog"
	"github.com/pollevbot/pollevbot/service/session"
	"github.com/pollevbot/pollevbot/tracing"
)

// Option customises the bot service.
type Option func(s *Service)

// WithSession replaces the platform session, e.g. with a test double.
func WithSession(svc session.Service) Option {
	return func(s *Service) { s.session = svc }
}

// WithGenerator sets the automated answer backend. Without one the bot
// answers multiple choice at random and skips free-text polls.
func WithGenerator(svc generator.Service) Option {
	return func(s *Service) { s.generator = svc }
}

// WithApprovalChannel sets the outbound transport free-text answers are
// offered on before submission.
func WithApprovalChannel(channel approval.Channel) Option {
	return func(s *Service) { s.channel = channel }
}

// WithConfirmer replaces the local fallback confirmation.
func WithConfirmer(confirmer pipeline.Confirmer) Option {
	return func(s *Service) { s.confirmer = confirmer }
}

// WithEventPublisher replaces the status event publisher.
func WithEventPublisher(events *event.Publisher) Option {
	return func(s *Service) { s.events = events }
}

// WithStatusHandler attaches a handler that receives every status event
// published during the run.
func WithStatusHandler(handler event.Handler) Option {
	return func(s *Service) { s.statusHandler = handler }
}

// WithResponseLog replaces the response log built from ResponseLogURL.
func WithResponseLog(log *responselog.Service) Option {
	return func(s *Service) { s.responseLog = log }
}

// WithPolicy overrides the approval policy from the configuration.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The function is safe to call multiple times - the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, enabling integrations other than the built-in stdout
// exporter. The function is safe to call multiple times - the first
// successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
