package session

import (
	"context"
	"fmt"

	"github.com/pollevbot/pollevbot/model/poll"
)

// Detection identifies a poll currently open on the feed.
type Detection struct {
	ID   string
	Kind poll.Kind
}

// Service is the authenticated platform session the watcher drives. A nil
// *Detection with a nil error from Probe means "no poll currently open".
type Service interface {
	// Login authenticates the session. Failure is fatal to the bot.
	Login(ctx context.Context) error

	// FeedToken retrieves a feed subscription token for the configured host.
	FeedToken(ctx context.Context) (string, error)

	// Probe issues a short, bounded-latency check against the feed. A
	// transport timeout or malformed payload is not an error; an explicit
	// subscription-expired marker is surfaced as ErrSubscriptionExpired so
	// that the caller can refresh its token.
	Probe(ctx context.Context, token string) (*Detection, error)

	// PollDetail fetches the full record for a detected poll.
	PollDetail(ctx context.Context, detection *Detection) (*poll.Record, error)

	// SubmitAnswer submits the final answer for a poll.
	SubmitAnswer(ctx context.Context, record *poll.Record, candidate *poll.Candidate) error
}

// AuthError indicates that login failed or the account is not authorised.
// It is the only error class that terminates the bot.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Reason)
}

// SubscriptionExpiredError is a recoverable probe failure: the feed token
// has lapsed and must be refreshed.
type SubscriptionExpiredError struct {
	Detail string
}

func (e *SubscriptionExpiredError) Error() string {
	return fmt.Sprintf("feed subscription expired: %v", e.Detail)
}
