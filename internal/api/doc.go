// Package api exposes the exercise service over HTTP.
//
// Handlers decode and validate requests, call the service layer and render
// responses. Errors are mapped to status codes in errors.go and rendered as
// {"error": ..., "trace_id": ...} with internal details redacted from logs
// and never sent to clients.
package api
