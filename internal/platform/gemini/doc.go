// Package gemini implements generation.Model on top of Google's Gemini API.
//
// This package is an infrastructure adapter: it turns a prompt into a single
// GenerateContent call and translates the outcome into the generation
// package's error vocabulary. Rate limiting, server errors and deadlines are
// reported as generation.ErrTransientFailure so that callers can decide
// whether to retry; safety blocks and empty responses are permanent.
package gemini
