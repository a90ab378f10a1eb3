package engine

import "fmt"

// DefaultMaxStatements bounds the write statements one public call may issue.
const DefaultMaxStatements = 10000

// QuotaEnforcer counts the write statements of one operation and fails the
// operation once the limit is passed. Deeply nested payloads and long
// reliance chains are the usual way to get there.
type QuotaEnforcer struct {
	max     int
	current int
}

// NewQuotaEnforcer creates an enforcer with the given limit. A limit of zero
// or less disables the check.
func NewQuotaEnforcer(max int) *QuotaEnforcer {
	return &QuotaEnforcer{max: max}
}

// Check counts one statement and reports whether the limit was passed.
func (q *QuotaEnforcer) Check(entity string) error {
	q.current++
	if q.max > 0 && q.current > q.max {
		return &MutationError{
			Code:    ErrQuotaExceeded,
			Entity:  entity,
			Message: fmt.Sprintf("operation exceeded %d statements", q.max),
		}
	}
	return nil
}

// Current returns the statement count so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// Max returns the limit.
func (q *QuotaEnforcer) Max() int {
	return q.max
}
