package stratified

import "fmt"

// PreconditionError means a zone's survey cannot be used for stratified
// estimation at all. It stops the build.
type PreconditionError struct {
	Zone   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("zone %q: stratified survey precondition failed: %s", e.Zone, e.Reason)
}
