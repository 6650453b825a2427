// Package service contains the application use cases of the exercise API.
//
// It orchestrates the store, the generator, the seed bank and the background
// queue to fulfil requests from the HTTP layer:
//
//   - FallbackResolver serves exercises from the cache, falling back to
//     synchronous generation and the static seed bank, and schedules a
//     background refill whenever the cache falls short.
//   - UsageTracker records attempts through a supervised background runner
//     and tracks which answers a session has mastered.
//
// Services depend on interfaces defined here or in internal/store, never on
// concrete infrastructure.
package service
