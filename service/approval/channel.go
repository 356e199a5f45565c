package approval

import (
	"context"
	"errors"

	"github.com/pollevbot/pollevbot/model/poll"
)

// ErrNoChannel is returned by RequestApproval when no approval transport is
// configured; the caller is expected to fall back to local confirmation.
var ErrNoChannel = errors.New("no approval channel configured")

// Channel is the outbound half of the approval transport. Notify presents a
// candidate to the approver together with the three actions
// (approve / reject / edit) correlated by requestID. The inbound half is the
// transport publishing RemoteAction values to the broker's action queue.
//
// The concrete transport (chat bot, push notification, web hook) is an
// external collaborator; only the action vocabulary and the request-id
// correlation are part of this contract.
type Channel interface {
	Notify(ctx context.Context, requestID string, candidate *poll.Candidate, question string) error
}
