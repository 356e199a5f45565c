// Package poll defines the value types exchanged between the feed watcher,
// the answer pipeline and the submission layer: the poll record as reported
// by the platform and the answer candidate produced for it.
package poll
