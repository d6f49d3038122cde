package draft

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidQuantity is matched by every InvalidQuantityError.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrSubmitted is returned when a mutation targets a submitted draft.
	ErrSubmitted = errors.New("draft already submitted")
)

// InvalidQuantityError reports a quantity below 1.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// Problem is one invalid or missing field.
type Problem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists why a set of selections cannot be priced or saved.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Reason
	}
	return "invalid selections: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the problems.
func (e *ValidationError) Has(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}
