// Package errutil provides the error-wrapping helper shared across the
// runtime's per-package error types, instead of every subsystem duplicating
// its own fmt.Errorf("%w") boilerplate.
package errutil

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
