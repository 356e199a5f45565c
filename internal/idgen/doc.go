// Package idgen provides process-wide unique identifier generation used to
// correlate approval requests with the decisions that resolve them.
package idgen
