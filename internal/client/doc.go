// Package client is an HTTP client for the status surface of a running
// cellwatch daemon (see package server).
//
// GET requests are retried with exponential backoff when the failure looks
// transient: connection refused, timeouts, 5xx responses and 409 while the
// diagnostic device is held. Capture start and stop are sent once. Every
// failure is an *Error whose Type drives the troubleshooting hints shown
// by `cellwatch status`.
package client
