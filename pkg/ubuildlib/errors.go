// Licensed under the MIT License.

package ubuildlib

import (
	"errors"
	"fmt"
)

// Global error types for categorization.
var (
	ErrConfigValidation = errors.New("config-validation")
	ErrAssembly         = errors.New("assembly")
)

// StageFailure wraps the first fatal stage's cause. Once raised, no further
// stages are dispatched.
type StageFailure struct {
	Stage string
	Cause error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage (%s) failed:\n%v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}
