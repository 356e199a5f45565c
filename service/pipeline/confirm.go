package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pollevbot/pollevbot/model/poll"
)

// Confirmer is the local fallback used when no approval channel is
// configured or the remote notification fails: a synchronous, bounded
// confirmation of a single candidate.
type Confirmer interface {
	Confirm(ctx context.Context, candidate *poll.Candidate, question string, timeout time.Duration) (bool, error)
}

// TerminalConfirmer prints the candidate and waits for a single keypress.
// 'y' approves; anything else, a read failure or the timeout cancels.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminalConfirmer confirms on stdin/stdout.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{In: os.Stdin, Out: os.Stdout}
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, candidate *poll.Candidate, question string, timeout time.Duration) (bool, error) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "PROPOSED RESPONSE:\n")
	fmt.Fprintf(out, "Question: %v\n", question)
	fmt.Fprintf(out, "Answer: %v\n", candidate.Text)
	fmt.Fprintf(out, "Confidence: %.2f\n", candidate.Confidence)
	fmt.Fprintf(out, "Reasoning: %v\n", candidate.Reasoning)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Press 'y' to submit this response, any other key to cancel.\n")
	fmt.Fprintf(out, "You have %v to respond; no response cancels.\n", timeout)

	read := make(chan byte, 1)
	go func() {
		reader := bufio.NewReader(c.In)
		if b, err := reader.ReadByte(); err == nil {
			read <- b
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-read:
		return b == 'y' || b == 'Y', nil
	case <-timer.C:
		fmt.Fprintln(out, "timeout reached - cancelling response")
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
