// Package pipeline turns one detected poll into at most one final answer:
// it obtains a candidate from the configured generator or the random
// fallback, validates free text with bounded retries, routes the result
// through the approval flow and records every attempt in the response log.
package pipeline
