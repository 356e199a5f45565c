package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pollevbot/pollevbot/model/poll"
	"github.com/pollevbot/pollevbot/policy"
	"github.com/pollevbot/pollevbot/service/approval"
	"github.com/pollevbot/pollevbot/service/generator"
	"github.com/pollevbot/pollevbot/service/responselog"
)

// stubGenerator scripts GenerateText responses and counts calls.
type stubGenerator struct {
	texts     []*poll.Candidate
	textErr   error
	textCalls int

	selection    *generator.Selection
	selectionErr error
	selectCalls  int
}

func (g *stubGenerator) SelectOption(_ context.Context, _ string, _ []poll.Option) (*generator.Selection, error) {
	g.selectCalls++
	return g.selection, g.selectionErr
}

func (g *stubGenerator) GenerateText(_ context.Context, _ string) (*poll.Candidate, error) {
	g.textCalls++
	if g.textErr != nil {
		return nil, g.textErr
	}
	idx := g.textCalls - 1
	if idx >= len(g.texts) {
		idx = len(g.texts) - 1
	}
	return g.texts[idx], nil
}

// stubConfirmer answers the local fallback deterministically.
type stubConfirmer struct {
	approve bool
	calls   int
}

func (c *stubConfirmer) Confirm(context.Context, *poll.Candidate, string, time.Duration) (bool, error) {
	c.calls++
	return c.approve, nil
}

func passing(text string) *poll.Candidate {
	return &poll.Candidate{Text: text, Confidence: 0.9}
}

func failing() *poll.Candidate {
	return &poll.Candidate{Text: "As an AI, I cannot answer that", Confidence: 0.9}
}

func multipleChoice() *poll.Record {
	return &poll.Record{
		ID:    "p1",
		Kind:  poll.KindMultipleChoice,
		Title: "Best season?",
		Options: []poll.Option{
			{ID: "o0", Label: "Spring"},
			{ID: "o1", Label: "Summer"},
			{ID: "o2", Label: "Winter"},
		},
	}
}

func freeText() *poll.Record {
	return &poll.Record{ID: "p2", Kind: poll.KindFreeText, Title: "favourite food?"}
}

func TestMultipleChoiceRandomFallback(t *testing.T) {
	svc := New(Config{MinOption: 0, MaxOption: 3},
		WithRandSource(rand.NewSource(1)))

	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		candidate, err := svc.Answer(context.Background(), multipleChoice())
		assert.NoError(t, err)
		if assert.NotNil(t, candidate) {
			seen[candidate.OptionID]++
		}
	}
	// every option in the window gets picked over repeated trials
	assert.Len(t, seen, 3)
	for id, count := range seen {
		assert.Greater(t, count, 50, "option %v should be picked roughly uniformly", id)
	}
}

func TestMultipleChoiceOptionWindow(t *testing.T) {
	svc := New(Config{MinOption: 1, MaxOption: 2},
		WithRandSource(rand.NewSource(1)))

	candidate, err := svc.Answer(context.Background(), multipleChoice())
	assert.NoError(t, err)
	assert.Equal(t, "o1", candidate.OptionID)
}

func TestMultipleChoiceEmptyOptionRange(t *testing.T) {
	svc := New(Config{MinOption: 5, MaxOption: 9})

	candidate, err := svc.Answer(context.Background(), multipleChoice())
	assert.Nil(t, candidate)
	var rangeErr *EmptyOptionRangeError
	assert.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 3, rangeErr.Available)
}

func TestMultipleChoiceGeneratorIsTrusted(t *testing.T) {
	gen := &stubGenerator{selection: &generator.Selection{OptionIndex: 2, Confidence: 0.4}}
	svc := New(Config{}, WithGenerator(gen))

	// no validation, no approval, a single call - even at low confidence
	candidate, err := svc.Answer(context.Background(), multipleChoice())
	assert.NoError(t, err)
	assert.Equal(t, "o2", candidate.OptionID)
	assert.Equal(t, 1, gen.selectCalls)
}

func TestGeneratorConfidenceOutOfRange(t *testing.T) {
	t.Run("multiple choice", func(t *testing.T) {
		gen := &stubGenerator{selection: &generator.Selection{OptionIndex: 0, Confidence: 1.7}}
		svc := New(Config{}, WithGenerator(gen))

		candidate, err := svc.Answer(context.Background(), multipleChoice())
		assert.Nil(t, candidate)
		var genErr *generator.Error
		assert.ErrorAs(t, err, &genErr)
		assert.Contains(t, err.Error(), "confidence")
	})

	t.Run("free text", func(t *testing.T) {
		gen := &stubGenerator{texts: []*poll.Candidate{{Text: "probably pizza", Confidence: 1.5}}}
		svc := New(Config{}, WithGenerator(gen))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.Nil(t, candidate)
		var genErr *generator.Error
		assert.ErrorAs(t, err, &genErr)
		assert.Equal(t, 1, gen.textCalls, "a structurally broken candidate is not retried")
	})
}

func TestMultipleChoiceGeneratorFailure(t *testing.T) {
	gen := &stubGenerator{selectionErr: errors.New("backend down")}
	svc := New(Config{}, WithGenerator(gen))

	candidate, err := svc.Answer(context.Background(), multipleChoice())
	assert.Nil(t, candidate)
	var genErr *generator.Error
	assert.ErrorAs(t, err, &genErr)
}

func TestFreeTextRetry(t *testing.T) {
	t.Run("passes on third attempt", func(t *testing.T) {
		gen := &stubGenerator{texts: []*poll.Candidate{failing(), failing(), passing("probably pizza")}}
		svc := New(Config{MaxRetries: 3},
			WithGenerator(gen),
			WithConfirmer(&stubConfirmer{approve: true}))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		assert.Equal(t, 3, gen.textCalls, "retry loop makes exactly three calls")
		if assert.NotNil(t, candidate) {
			assert.Equal(t, "probably pizza", candidate.Text)
		}
	})

	t.Run("exhausts retries and reports no answer", func(t *testing.T) {
		gen := &stubGenerator{texts: []*poll.Candidate{failing()}}
		confirmer := &stubConfirmer{approve: true}
		svc := New(Config{MaxRetries: 3},
			WithGenerator(gen),
			WithConfirmer(confirmer))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		assert.Nil(t, candidate)
		assert.Equal(t, 3, gen.textCalls)
		assert.Equal(t, 0, confirmer.calls, "nothing to confirm when validation exhausts")
	})

	t.Run("generation error skips the poll", func(t *testing.T) {
		gen := &stubGenerator{textErr: errors.New("backend down")}
		svc := New(Config{}, WithGenerator(gen))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.Nil(t, candidate)
		var genErr *generator.Error
		assert.ErrorAs(t, err, &genErr)
		assert.Equal(t, 1, gen.textCalls)
	})
}

func TestFreeTextWithoutGenerator(t *testing.T) {
	svc := New(Config{})
	candidate, err := svc.Answer(context.Background(), freeText())
	assert.NoError(t, err)
	assert.Nil(t, candidate)
}

type okChannel struct{}

func (okChannel) Notify(context.Context, string, *poll.Candidate, string) error { return nil }

func TestFreeTextApprovalFlow(t *testing.T) {
	newBroker := func() *approval.Service {
		return approval.New(approval.Config{PollInterval: 5 * time.Millisecond},
			approval.WithChannel(okChannel{}))
	}

	t.Run("approved answer proceeds", func(t *testing.T) {
		broker := newBroker()
		stop := approval.AutoApprove(context.Background(), broker, 5*time.Millisecond)
		defer stop()

		svc := New(Config{ApprovalTimeout: time.Second},
			WithGenerator(&stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}),
			WithBroker(broker))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		if assert.NotNil(t, candidate) {
			assert.Equal(t, "probably pizza", candidate.Text)
		}
	})

	t.Run("edited answer overrides text", func(t *testing.T) {
		broker := newBroker()
		edited := "actually sushi"
		stop := approval.AutoDecider(context.Background(), broker,
			func(*approval.Request) (approval.Action, *string) {
				return approval.ActionEdit, &edited
			}, 5*time.Millisecond)
		defer stop()

		svc := New(Config{ApprovalTimeout: time.Second},
			WithGenerator(&stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}),
			WithBroker(broker))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		if assert.NotNil(t, candidate) {
			assert.Equal(t, "actually sushi", candidate.Text)
		}
	})

	t.Run("rejected answer is dropped", func(t *testing.T) {
		broker := newBroker()
		stop := approval.AutoReject(context.Background(), broker, 5*time.Millisecond)
		defer stop()

		svc := New(Config{ApprovalTimeout: time.Second},
			WithGenerator(&stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}),
			WithBroker(broker))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		assert.Nil(t, candidate)
	})

	t.Run("timeout drops the answer", func(t *testing.T) {
		broker := newBroker()
		svc := New(Config{ApprovalTimeout: 30 * time.Millisecond},
			WithGenerator(&stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}),
			WithBroker(broker))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		assert.Nil(t, candidate)
	})

	t.Run("broker without channel falls back to confirmer", func(t *testing.T) {
		broker := approval.New(approval.Config{})
		confirmer := &stubConfirmer{approve: true}
		svc := New(Config{},
			WithGenerator(&stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}),
			WithBroker(broker),
			WithConfirmer(confirmer))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		assert.NotNil(t, candidate)
		assert.Equal(t, 1, confirmer.calls)
	})

	t.Run("no broker and rejecting confirmer drops", func(t *testing.T) {
		svc := New(Config{},
			WithGenerator(&stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}),
			WithConfirmer(&stubConfirmer{approve: false}))

		candidate, err := svc.Answer(context.Background(), freeText())
		assert.NoError(t, err)
		assert.Nil(t, candidate)
	})
}

func TestPolicyModes(t *testing.T) {
	gen := func() *stubGenerator {
		return &stubGenerator{texts: []*poll.Candidate{passing("probably pizza")}}
	}

	t.Run("auto submits without review", func(t *testing.T) {
		confirmer := &stubConfirmer{approve: false}
		svc := New(Config{}, WithGenerator(gen()), WithConfirmer(confirmer))

		ctx := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeAuto})
		candidate, err := svc.Answer(ctx, freeText())
		assert.NoError(t, err)
		assert.NotNil(t, candidate)
		assert.Equal(t, 0, confirmer.calls)
	})

	t.Run("deny drops without review", func(t *testing.T) {
		confirmer := &stubConfirmer{approve: true}
		svc := New(Config{}, WithGenerator(gen()), WithConfirmer(confirmer))

		ctx := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeDeny})
		candidate, err := svc.Answer(ctx, freeText())
		assert.NoError(t, err)
		assert.Nil(t, candidate)
		assert.Equal(t, 0, confirmer.calls)
	})

	t.Run("multiple choice review opt-in", func(t *testing.T) {
		confirmer := &stubConfirmer{approve: false}
		svc := New(Config{},
			WithRandSource(rand.NewSource(1)),
			WithConfirmer(confirmer))

		ctx := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeAsk, ReviewMultipleChoice: true})
		candidate, err := svc.Answer(ctx, multipleChoice())
		assert.NoError(t, err)
		assert.Nil(t, candidate, "rejected multiple-choice answer must not submit")
		assert.Equal(t, 1, confirmer.calls)
	})
}

func TestResponseLogRecordsEveryAttempt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.jsonl")
	rlog := responselog.New(path)

	svc := New(Config{MaxRetries: 2},
		WithGenerator(&stubGenerator{texts: []*poll.Candidate{failing()}}),
		WithResponseLog(rlog))

	candidate, err := svc.Answer(context.Background(), freeText())
	assert.NoError(t, err)
	assert.Nil(t, candidate)

	svc = New(Config{MaxOption: 3},
		WithRandSource(rand.NewSource(1)),
		WithResponseLog(rlog))
	candidate, err = svc.Answer(context.Background(), multipleChoice())
	assert.NoError(t, err)
	assert.NotNil(t, candidate)
}
