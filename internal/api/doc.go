// Package api defines the wire format shared by the HTTP server in
// internal/web and the CLI client in internal/apiclient.
//
// Every response is an Envelope: the stage payload under data, plus an
// optional notice ({type, message}) and navigate ({stage, delayMs}) hint.
// DTOs use camelCase JSON tags for browser consumers.
package api
