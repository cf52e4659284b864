package exposure

import "fmt"

// ZoneError reports an input zone the mapping scheme does not cover.
type ZoneError struct {
	Zone string
}

func (e *ZoneError) Error() string {
	return fmt.Sprintf("mapping scheme has no assignment for zone %q", e.Zone)
}
