// Package watcher drives the bot's single cooperative loop: probe the
// feed, deduplicate poll ids for the lifetime of the process, pace with the
// configured open/closed waits and hand each new poll to the answer
// pipeline.
package watcher
