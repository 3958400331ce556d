package runcache

import "sync/atomic"

// CancelFlag is the cooperative cancellation checkpoint long multi-phase
// runs consult between phases. There is no hard preemption of in-flight
// I/O; a set flag only stops the next phase from starting.
type CancelFlag struct {
	cancelled atomic.Bool
}

// Cancel requests the run stop at its next checkpoint.
func (f *CancelFlag) Cancel() {
	f.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (f *CancelFlag) Cancelled() bool {
	return f.cancelled.Load()
}
