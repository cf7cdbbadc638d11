package orchestrator

import (
	"errors"
	"fmt"
)

// ErrGenerationExhausted matches every *GenerationExhaustedError.
var ErrGenerationExhausted = errors.New("generation exhausted")

// GenerationExhaustedError reports that no attempt produced any text.
type GenerationExhaustedError struct {
	Attempts int
	Last     error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("generation exhausted: all %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *GenerationExhaustedError) Unwrap() error {
	return e.Last
}

func (e *GenerationExhaustedError) Is(target error) bool {
	return target == ErrGenerationExhausted
}
