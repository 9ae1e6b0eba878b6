// Package web exposes the four workflow stages over HTTP.
//
// Every response is an api.Envelope. Sessions are identified by the
// minimill_session cookie or the X-Session-ID header; a new id is minted on
// first contact. Errors from the stage services are mapped to status codes by
// their services marker, and any attached user message and redirect become the
// envelope's notice and navigate fields.
package web
