// Package task runs the service's background work: the generation queue that
// replenishes the exercise cache, and a small supervisor for fire-and-forget
// writes whose failures must still be observable. Both survive restarts
// through the queue table; items interrupted mid-flight are failed at startup.
package task
