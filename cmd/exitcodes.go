package cmd

import (
	"errors"

	"imgapi/internal/model"
)

// Exit codes for imgapi run
const (
	// ExitSuccess indicates a recorded JSON response
	ExitSuccess = 0

	// ExitAPIError indicates a non-success status or a non-JSON body
	ExitAPIError = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a failed image fetch or API call
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage or an incomplete form
	ExitUsageError = 64
)

// exitCodeFor maps a run error to its exit code
func exitCodeFor(err error) int {
	var (
		verr *model.ValidationError
		terr *model.TransportError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &verr):
		return ExitUsageError
	case errors.As(err, &terr):
		return ExitNetworkError
	default:
		return ExitAPIError
	}
}
