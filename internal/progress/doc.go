// Package progress tracks running jobs for the progress stage.
//
// A Tracker per session runs three tickers (clock, local progress estimate,
// status poll) and funnels every terminal event through a Machine so that
// completion, failure and cancellation each happen at most once. Trackers
// publish sequenced events to an EventBus that API clients read
// incrementally. The Manager resolves a session's current job, owns the
// tracker goroutines and stops them on shutdown.
package progress
