package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pollevbot/pollevbot/model/poll"
)

// Rule names reported in violations so that callers can log every reason a
// candidate was rejected.
const (
	RuleDisclosure = "disclosure"
	RuleFormality  = "formality"
	RuleLength     = "length"
	RuleStructure  = "structure"
	RuleConfidence = "confidence"
)

// disclosurePatterns match AI self-reference or refusal phrasing.
var disclosurePatterns = []string{
	`\b(ai|artificial intelligence|language model|llm|claude|assistant)\b`,
	`\bas an ai\b`,
	`\bi am an\b`,
	`\bi cannot\b`,
	`\bi don't experience\b`,
	`\bi apologize\b`,
}

// formalPatterns match register too formal for a casual poll response.
var formalPatterns = []string{
	`furthermore`,
	`moreover`,
	`thus`,
	`hence`,
	`wherein`,
	`hereby`,
	`nevertheless`,
	`subsequently`,
}

// Violation describes one failed rule. Violations are additive: a single
// candidate may fail several rules at once.
type Violation struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (v Violation) String() string { return v.Rule + ": " + v.Detail }

// Join renders a violation list as a single log-friendly line.
func Join(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}

// Config carries the tunable thresholds. The zero value is replaced by
// DefaultConfig by New.
type Config struct {
	MaxLength     int     `json:"maxLength" yaml:"maxLength"`
	MinConfidence float64 `json:"minConfidence" yaml:"minConfidence"`
	MaxPeriods    int     `json:"maxPeriods" yaml:"maxPeriods"`
}

// DefaultConfig returns the thresholds a typical casual response fits in.
func DefaultConfig() Config {
	return Config{
		MaxLength:     150,
		MinConfidence: 0.7,
		MaxPeriods:    3,
	}
}

// Service is a stateless, deterministic classifier for free-text answer
// candidates. It is safe for concurrent use.
type Service struct {
	config     Config
	disclosure []*regexp.Regexp
	formal     []*regexp.Regexp
}

// New creates a validator with the supplied thresholds; zero fields inherit
// their defaults.
func New(config Config) *Service {
	defaults := DefaultConfig()
	if config.MaxLength <= 0 {
		config.MaxLength = defaults.MaxLength
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = defaults.MinConfidence
	}
	if config.MaxPeriods <= 0 {
		config.MaxPeriods = defaults.MaxPeriods
	}
	ret := &Service{config: config}
	for _, pattern := range disclosurePatterns {
		ret.disclosure = append(ret.disclosure, regexp.MustCompile(`(?i)`+pattern))
	}
	for _, pattern := range formalPatterns {
		ret.formal = append(ret.formal, regexp.MustCompile(`(?i)`+pattern))
	}
	return ret
}

// Validate classifies a free-text candidate. An empty result means the
// candidate passed every rule. All rules run; nothing short-circuits.
func (s *Service) Validate(candidate *poll.Candidate) []Violation {
	var violations []Violation
	text := candidate.Text

	if candidate.Confidence < s.config.MinConfidence {
		violations = append(violations, Violation{
			Rule:   RuleConfidence,
			Detail: fmt.Sprintf("confidence too low: %.2f", candidate.Confidence),
		})
	}
	if s.matchesAny(s.disclosure, text) {
		violations = append(violations, Violation{
			Rule:   RuleDisclosure,
			Detail: "contains AI disclosure patterns",
		})
	}
	if s.matchesAny(s.formal, text) {
		violations = append(violations, Violation{
			Rule:   RuleFormality,
			Detail: "contains overly formal language",
		})
	}
	if len(text) > s.config.MaxLength {
		violations = append(violations, Violation{
			Rule:   RuleLength,
			Detail: fmt.Sprintf("response too long (%d chars)", len(text)),
		})
	}
	if detail, ok := s.checkStructure(text); !ok {
		violations = append(violations, Violation{
			Rule:   RuleStructure,
			Detail: detail,
		})
	}
	return violations
}

func (s *Service) matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// checkStructure rejects formatting that would not appear in a casual,
// hand-typed response.
func (s *Service) checkStructure(text string) (string, bool) {
	if strings.Contains(text, "```") || strings.Contains(text, "#") || strings.Contains(text, "*") {
		return "contains markdown formatting", false
	}
	if strings.Count(text, ".") > s.config.MaxPeriods {
		return "too many sentences", false
	}
	if strings.Contains(text, ";") {
		return "unnatural punctuation", false
	}
	return "", true
}
