// Package redis implements store.MasteryStore on Redis using go-redis.
//
// Each session owns two keys: a hash of answer streaks and a set of mastered
// answers. Both expire after the configured TTL of inactivity.
package redis
