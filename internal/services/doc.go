// Package services defines shared error markers and context helpers used by
// the workflow stages, the HTTP API and the backend client.
//
// Stage code wraps failures with Wrap so callers can classify them with
// errors.Is (validation, transient, external, missing state) and attaches the
// message the user should see with WithUserMessage. The context helpers stamp
// session, job, stage and request identifiers for logging.
package services
