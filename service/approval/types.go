package approval

import (
	"time"

	"github.com/pollevbot/pollevbot/model/poll"
)

// Status of a pending approval request. Transitions are one-way:
// Pending -> Approved | Rejected. A record never transitions twice.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"

	// StatusExpired is never stored; it is the outcome reported to a waiter
	// that found its record already claimed by another party.
	StatusExpired Status = "expired"
)

// Action is the three-verb vocabulary a remote approver can use.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionEdit    Action = "edit"
)

// Request represents one candidate answer awaiting a decision. Records are
// created by RequestApproval, mutated only by Resolve or the reaper, and
// removed from the shared table exactly once.
type Request struct {
	ID           string          `json:"id"`
	Candidate    *poll.Candidate `json:"candidate"`
	Question     string          `json:"question"`
	CreatedAt    time.Time       `json:"createdAt"`
	Status       Status          `json:"status"`
	ModifiedText *string         `json:"modifiedText,omitempty"`
}

// RemoteAction is an inbound decision pushed by the approval transport,
// correlated to its request by ID.
type RemoteAction struct {
	RequestID    string  `json:"requestId"`
	Action       Action  `json:"action"`
	ModifiedText *string `json:"modifiedText,omitempty"`
}

// Outcome is the terminal result delivered to exactly one waiter.
type Outcome struct {
	Status       Status  `json:"status"`
	ModifiedText *string `json:"modifiedText,omitempty"`
	TimedOut     bool    `json:"timedOut,omitempty"`
}

// Approved reports whether the candidate may proceed to submission.
func (o Outcome) Approved() bool { return o.Status == StatusApproved }

// Text returns the submittable answer, honouring an approver edit.
func (o Outcome) Text(original string) string {
	if o.ModifiedText != nil {
		return *o.ModifiedText
	}
	return original
}
