// Package pollev implements the platform session against the PollEverywhere
// endpoints: csrf handshake, direct and SSO login, feed-token negotiation,
// the bounded firehose probe, poll detail retrieval and answer submission.
package pollev
