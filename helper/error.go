package helper

import "fmt"

// NewError wraps err with a short trace label describing the failed step.
// The wrapped error stays reachable through errors.Is and errors.As.
func NewError(trace string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", trace, err)
}
