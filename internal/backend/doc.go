// Package backend defines the processing backend contract the workflow stages
// depend on and ships two implementations: HTTPClient for a real service
// exposing /upload, /status/{id}, /results/{id} and /download/{id}, and
// Simulator, which fabricates status and statistics from timers.
package backend
