// Package event carries severity-tagged status updates from the bot to a
// caller-supplied sink. Failures inside the main loop are reported here
// rather than raised as faults.
package event
