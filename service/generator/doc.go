// Package generator defines the contract for the automated answer backend.
// No concrete client ships with the bot; when no generator is configured
// multiple-choice answers fall back to uniform random selection and
// free-text polls are skipped.
package generator
