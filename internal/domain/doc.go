// Package domain holds the exercise model: CEFR levels, topics, gap-fill
// exercises with their tagged hints, dedup keys and generation queue items.
// It has no knowledge of storage or transport.
package domain
