package generator

import (
	"context"
	"fmt"

	"github.com/pollevbot/pollevbot/model/poll"
)

// Service produces candidate answers for polls. Implementations wrap a
// text-generation backend; the bot treats them as untrusted and may retry,
// validate or discard what they return.
type Service interface {
	// SelectOption picks one of the supplied options for a multiple-choice
	// question. The returned candidate carries the option index within the
	// supplied slice, not the platform option id.
	SelectOption(ctx context.Context, question string, options []poll.Option) (*Selection, error)

	// GenerateText produces a free-form answer for the question.
	GenerateText(ctx context.Context, question string) (*poll.Candidate, error)
}

// Selection is a multiple-choice pick relative to the options passed to
// SelectOption.
type Selection struct {
	OptionIndex int     `json:"selectedOptionId"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// Error wraps a backend failure; the current poll is skipped, nothing is
// submitted and the loop continues.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }
