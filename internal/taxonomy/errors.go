package taxonomy

import "fmt"

// ParseError reports a taxonomy string that could not be parsed. It is a
// per-record data-quality problem: callers aggregating many records skip
// the record and continue.
type ParseError struct {
	Input  string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parse taxonomy %q: token %q: %s", e.Input, e.Token, e.Reason)
	}
	return fmt.Sprintf("parse taxonomy %q: %s", e.Input, e.Reason)
}
