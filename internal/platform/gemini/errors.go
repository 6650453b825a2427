package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/gapfill-api/internal/generation"
	"google.golang.org/genai"
)

// classifyError maps a GenerateContent error onto the generation sentinels.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: gemini status %d: %s",
				generation.ErrTransientFailure, apiErr.Code, apiErr.Message)
		default:
			return fmt.Errorf("%w: gemini status %d: %s",
				generation.ErrGenerationFailed, apiErr.Code, apiErr.Message)
		}
	}

	// Anything else is a transport problem.
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}
