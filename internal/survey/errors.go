package survey

import "fmt"

// RecordError marks a single survey record that was skipped.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("survey record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
