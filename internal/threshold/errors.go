package threshold

import "fmt"

// InvalidInputError reports pixel or histogram data that cannot be
// thresholded: an empty image, a histogram with no pixels, or intensities
// outside [0,255].
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// ConfigurationError reports a parameter outside its supported range.
type ConfigurationError struct {
	// Field names the offending parameter (e.g. "classes", "rows").
	Field string

	// Reason describes the constraint that was violated.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func invalidInput(format string, args ...interface{}) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

func badConfig(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
