// Package seedbank holds the static exercises served when neither the cache
// nor on-demand generation can fill a request. The bank is embedded in the
// binary, indexed by level and by (level, topic), and can be imported into
// the exercise store once with source=static.
package seedbank
