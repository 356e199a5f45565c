// Package responselog keeps an append-only JSON-lines record of every
// answer the bot attempted, whether it was submitted, rejected or dropped.
package responselog
