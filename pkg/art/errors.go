package art

import "fmt"

// InvariantViolation signals a corrupted tree or a programming bug in
// the ART layer, such as an unexpected leaf type surfacing in Scan, a gate
// descent while already inside a gate, or a descent through a node
// missing metadata where metadata was required. It is never returned
// for exhaustion (Next/LowerBound returning false) or a capped output
// (Scan returning false) — those are ordinary boolean results, per the
// error taxonomy in spec §7.
type InvariantViolation struct {
	msg string
}

func (e *InvariantViolation) Error() string { return e.msg }

func newInvariantViolation(format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{msg: fmt.Sprintf(format, args...)}
}
