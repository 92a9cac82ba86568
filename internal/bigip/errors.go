package bigip

import (
	"errors"
	"fmt"
)

// Sentinel kinds the reconciler branches on. Callers match them with
// errors.Is and must never look at server-generated wording.
var (
	ErrNotFound        = errors.New("object was not found")
	ErrStillReferenced = errors.New("node is referenced by a member of a pool")
)

// OpError is any other remote failure. It keeps the original control-plane
// message so fatal reports carry it unmodified.
type OpError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *OpError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: control plane returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: control plane returned status %d: %s", e.Op, e.StatusCode, e.Message)
}
