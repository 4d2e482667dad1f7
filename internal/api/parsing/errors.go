package parsing

import (
	"errors"
	"fmt"
)

// ParsingError represents an invalid request parameter
type ParsingError struct {
	message string
}

// NewParsingError creates a new parsing error
func NewParsingError(message string, args ...interface{}) *ParsingError {
	return &ParsingError{
		message: fmt.Sprintf(message, args...),
	}
}

// Error returns the error message
func (pe *ParsingError) Error() string {
	return pe.message
}

// IsParsingError reports whether err is a parsing error
func IsParsingError(err error) bool {
	var target *ParsingError
	return errors.As(err, &target)
}
