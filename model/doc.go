// Package model aggregates the in-memory representation of the domain
// objects the bot works with. The poll sub-package defines the polls pulled
// off the feed and the candidate answers produced for them.
package model
