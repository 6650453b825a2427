package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a generation call produced nothing usable
	ErrGenerationFailed = errors.New("failed to generate exercises")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrNoJSONArray is returned when no balanced JSON array can be found in the response
	ErrNoJSONArray = fmt.Errorf("%w: no JSON array found", ErrInvalidResponse)

	// ErrInvalidCandidate marks a single candidate that failed validation
	ErrInvalidCandidate = errors.New("invalid exercise candidate")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during exercise generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrInvalidRequest is returned for requests with no levels or a non-positive count
	ErrInvalidRequest = errors.New("invalid generation request")
)
