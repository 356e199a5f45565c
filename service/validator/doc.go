// Package validator implements the rule-based classifier that free-text
// answer candidates must pass before they are offered for approval. The
// rules are data-driven and independently extensible; every failed rule is
// reported, not just the first.
package validator
