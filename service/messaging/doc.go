// Package messaging defines the abstract queue contract used to move
// approval actions and status events between the bot's main loop and its
// background listeners.
package messaging
