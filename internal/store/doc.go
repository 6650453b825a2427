// Package store declares the persistence contracts for exercises, the
// generation queue and per-session mastery, together with the error values
// every implementation maps its failures onto.
package store
