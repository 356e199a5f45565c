package poll

import "fmt"

// Kind discriminates the poll formats the platform reports on the feed.
type Kind string

const (
	// KindMultipleChoice is a poll answered by picking one of its options.
	KindMultipleChoice Kind = "multiple_choice_poll"

	// KindFreeText is a poll answered with free-form text.
	KindFreeText Kind = "free_text_poll"
)

// Option is a single selectable answer of a multiple-choice poll.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"humanized_value"`
}

// Record describes one poll as reported by the platform. A record is
// created when the feed first reports its id and is immutable afterwards.
type Record struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"type"`
	Title   string   `json:"title"`
	Options []Option `json:"options,omitempty"` // multiple choice only
}

// Candidate is a proposed answer for a poll, produced either by a
// generator or by the random fallback. Exactly one of OptionID and Text is
// populated, matching the poll kind.
type Candidate struct {
	OptionID   string  `json:"optionId,omitempty"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Validate reports whether the candidate is structurally sound.
func (c *Candidate) Validate() error {
	if c == nil {
		return fmt.Errorf("candidate was nil")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c.Confidence)
	}
	if c.OptionID == "" && c.Text == "" {
		return fmt.Errorf("candidate carries neither option nor text")
	}
	return nil
}

// Answer returns the submittable value of the candidate.
func (c *Candidate) Answer() string {
	if c.OptionID != "" {
		return c.OptionID
	}
	return c.Text
}
