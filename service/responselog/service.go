package responselog

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/pollevbot/pollevbot/internal/clock"
	"github.com/pollevbot/pollevbot/model/poll"
)

// Record is one attempted answer, submitted or dropped.
type Record struct {
	Timestamp  time.Time     `json:"timestamp"`
	PollID     string        `json:"poll_id"`
	PollKind   poll.Kind     `json:"poll_type"`
	Question   string        `json:"question"`
	Options    []poll.Option `json:"options,omitempty"`
	Answer     string        `json:"answer,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Reasoning  string        `json:"reasoning,omitempty"`
	Outcome    string        `json:"outcome"`
	Submitted  bool          `json:"submitted"`
}

// Outcomes recorded with each attempt.
const (
	OutcomeSubmitted = "submitted"
	OutcomeRejected  = "rejected"
	OutcomeNoAnswer  = "no_answer"
	OutcomeError     = "error"
)

// Service appends every attempted answer to a JSON-lines log. Appends are
// fire-and-forget: failures are logged, never raised into the main loop.
type Service struct {
	fs  afs.Service
	url string

	mu      sync.Mutex
	content []byte
	loaded  bool
}

// New creates a response log writing to the supplied URL (a plain file path
// or any scheme the storage layer understands).
func New(url string) *Service {
	return &Service{fs: afs.New(), url: url}
}

// Append writes one record. The first append picks up any existing log
// content so restarts keep accumulating into the same file.
func (s *Service) Append(ctx context.Context, record *Record) {
	if s == nil || record == nil {
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = clock.Now()
	}
	line, err := json.Marshal(record)
	if err != nil {
		log.Printf("failed to encode response log record: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if ok, _ := s.fs.Exists(ctx, s.url); ok {
			if data, err := s.fs.DownloadWithURL(ctx, s.url); err == nil {
				s.content = data
			}
		}
		s.loaded = true
	}
	s.content = append(s.content, line...)
	s.content = append(s.content, '\n')
	// the storage layer has no append primitive, so every write rewrites the
	// accumulated file; the log stays in memory for the life of the process
	if err := s.fs.Upload(ctx, s.url, file.DefaultFileOsMode, bytes.NewReader(s.content)); err != nil {
		log.Printf("failed to append response log record: %v", err)
	}
}
