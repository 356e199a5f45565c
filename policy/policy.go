package policy

import (
	"context"

	"github.com/pollevbot/pollevbot/model/poll"
)

// Execution modes recognised by the answer pipeline.
const (
	ModeAsk  = "ask"  // ask the approver before submitting (default)
	ModeAuto = "auto" // submit automatically, no review
	ModeDeny = "deny" // never submit reviewed kinds
)

// Policy represents the approval settings for the current run.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - ReviewMultipleChoice extends review to multiple-choice answers, which
//     by default are submitted unreviewed while only free-text answers pass
//     through approval.
//
// A nil *Policy means "ask for free text, trust multiple choice" and is
// therefore the zero-cost default.
type Policy struct {
	Mode                 string `json:"mode,omitempty" yaml:"mode,omitempty"`
	ReviewMultipleChoice bool   `json:"reviewMultipleChoice,omitempty" yaml:"reviewMultipleChoice,omitempty"`
}

// reviewed reports whether answers of the given kind are subject to this
// policy at all.
func (p *Policy) reviewed(kind poll.Kind) bool {
	if kind == poll.KindFreeText {
		return true
	}
	return p != nil && p.ReviewMultipleChoice
}

// RequiresApproval reports whether an answer of the given kind must be
// approved before submission.
func (p *Policy) RequiresApproval(kind poll.Kind) bool {
	if !p.reviewed(kind) {
		return false
	}
	if p == nil {
		return true
	}
	switch p.Mode {
	case ModeAuto, ModeDeny:
		return false
	default:
		return true
	}
}

// Denies reports whether an answer of the given kind must be dropped
// without submission.
func (p *Policy) Denies(kind poll.Kind) bool {
	return p != nil && p.Mode == ModeDeny && p.reviewed(kind)
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
