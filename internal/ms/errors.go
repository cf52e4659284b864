package ms

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAttributeMismatch indicates a child whose attribute differs from
	// the attribute its siblings (or the tree's ordering) require.
	ErrAttributeMismatch = errors.New("attribute mismatch")

	// ErrInvalidModifier indicates a modifier slot that names no attribute
	// of the taxonomy, or one the tree already splits by around the node.
	ErrInvalidModifier = errors.New("invalid modifier index")

	// ErrUnknownNode indicates a node handle that is out of range or was
	// deleted.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNotFinalized is returned when leaves or samples are requested
	// before Finalize.
	ErrNotFinalized = errors.New("statistics not finalized")

	// ErrNoLeaves is returned when sampling a tree without leaves.
	ErrNoLeaves = errors.New("statistics have no leaves")

	// ErrInvalidWeight indicates a negative or non-finite case weight.
	ErrInvalidWeight = errors.New("invalid case weight")

	// ErrUnsupportedVersion indicates a serialized scheme written by an
	// incompatible format version.
	ErrUnsupportedVersion = errors.New("unsupported mapping scheme format version")
)

// NodeError is a structural error raised while editing the tree. It is not
// recoverable by the caller; the current build step must be aborted.
type NodeError struct {
	Op   string
	Path []string
	Err  error
}

func (e *NodeError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s at root: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Op, strings.Join(e.Path, "/"), e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// IsStructural reports whether err is a structural tree error, as opposed
// to a per-record data-quality problem.
func IsStructural(err error) bool {
	var ne *NodeError
	return errors.As(err, &ne)
}
