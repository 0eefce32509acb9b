package history

import "strings"

// criticalError marks an error the retrier must not retry. Passing a zero
// instance to Do as a terminal error matches any wrapped occurrence.
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	if e.err == nil {
		return "critical error"
	}
	return e.err.Error()
}

func (e *criticalError) Unwrap() error { return e.err }

// Is matches any criticalError regardless of the wrapped cause
func (e *criticalError) Is(target error) bool {
	_, ok := target.(*criticalError)
	return ok
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
