package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Request execution errors
	ErrRateLimited = fmt.Errorf("rate limit exceeded")
	ErrTransient   = fmt.Errorf("transient request failure")
	ErrAPIRequest  = fmt.Errorf("API request failed")
	ErrValidation  = fmt.Errorf("unexpected response shape")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
