// Package session defines the contract for the authenticated scraping
// session against the polling platform, together with the error taxonomy the
// watcher relies on: auth failures are fatal, transport hiccups mean "no
// poll", and an expired feed subscription asks for a token refresh.
package session
