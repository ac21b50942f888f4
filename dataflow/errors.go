package dataflow

import "fmt"

// MalformedPlanError reports an internally inconsistent plan: an
// out-of-range column reference, an operator whose children do not match
// its expectations, or a join with no inputs. It always indicates a bug in
// the front end or in a prior rewrite, never bad user input, so
// optimization stops rather than propagating garbage.
type MalformedPlanError struct {
	Reason string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan: %s", e.Reason)
}

// Malformedf constructs a MalformedPlanError from a format string.
func Malformedf(format string, args ...interface{}) error {
	return &MalformedPlanError{Reason: fmt.Sprintf(format, args...)}
}

// RecursionLimitError reports that a plan traversal exceeded the configured
// depth limit. Callers should treat it as "plan too complex" rather than a
// crash.
type RecursionLimitError struct {
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("plan exceeds recursion depth limit %d", e.Limit)
}

// Descend checks the depth guard and returns the depth for child visits.
// Every recursive traversal site calls it on entry.
func Descend(depth, limit int) (int, error) {
	if depth >= limit {
		return depth, &RecursionLimitError{Limit: limit}
	}
	return depth + 1, nil
}
