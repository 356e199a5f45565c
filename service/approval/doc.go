// Package approval implements the human-in-the-loop approval broker. A
// validated free-text candidate is registered as a pending request, the
// approver is notified through a pluggable channel, and the answer pipeline
// blocks until a decision arrives, the wait times out, or the reaper expires
// the request.
package approval
