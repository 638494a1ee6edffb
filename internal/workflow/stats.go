package workflow

import "time"

// RunStats summarises one Scheduler run.
type RunStats struct {
	Total         int
	Skipped       int
	Pending       int
	Attempted     int
	Succeeded     int
	Failed        int
	NotDispatched int
	Elapsed       time.Duration
}

// AveragePerUnit reports mean wall-clock time per attempted unit. The second
// value is false when nothing was attempted.
func (s RunStats) AveragePerUnit() (time.Duration, bool) {
	if s.Attempted == 0 {
		return 0, false
	}
	return s.Elapsed / time.Duration(s.Attempted), true
}

// Stopped reports whether some pending units were never dispatched.
func (s RunStats) Stopped() bool {
	return s.NotDispatched > 0
}
