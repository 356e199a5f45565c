// Package policy defines the optional approval policy attached to a bot
// run via context: ask, auto or deny, with an opt-in knob extending review
// to multiple-choice answers. Runs without a policy keep the default
// behaviour of reviewing free-text answers only.
package policy
