// Package memory provides in-process implementations of store interfaces for
// deployments without Redis and for tests.
package memory
