package compose

import "fmt"

// CompositionError reports which assembly step failed and why. The
// session that hit it fails; the temporary output is discarded.
type CompositionError struct {
	Step  string
	Cause error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition failed at %s: %v", e.Step, e.Cause)
}

func (e *CompositionError) Unwrap() error { return e.Cause }

func failed(step string, cause error) error {
	return &CompositionError{Step: step, Cause: cause}
}
