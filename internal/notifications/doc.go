// Package notifications delivers job milestones via ntfy.
//
// The service publishes to the topic configured in config.toml and degrades
// to a no-op when no topic is set. Failed and completed jobs can additionally
// request an email copy through ntfy's Email header when the user opted in.
package notifications
