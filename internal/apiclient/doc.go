// Package apiclient is the HTTP client the minimill CLI uses to drive a
// running daemon. Every call acts for one session, sent as X-Session-ID.
package apiclient
