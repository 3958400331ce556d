package runcache

import (
	"sync/atomic"

	"github.com/civiclens/signalgraph/internal/metrics"
)

// Budget enforces a hard per-run cap on budget-limited external calls
// (embedding and LLM invocations). Exhaustion is signaled as a boolean
// refusal, not an error: callers choose to skip work rather than crash.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget creates a tracker allowing up to limit units per run.
// A non-positive limit means unlimited.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// TryConsume reserves n units. Check-then-increment with rollback on
// overflow keeps it safe under concurrent access without a mutex.
func (b *Budget) TryConsume(n int64) bool {
	if b.limit <= 0 {
		return true
	}
	if b.used.Add(n) > b.limit {
		b.used.Add(-n)
		metrics.Default().IncBudgetRefusal()
		return false
	}
	return true
}

// Used returns the units consumed so far.
func (b *Budget) Used() int64 {
	return b.used.Load()
}

// Remaining returns the units left, or -1 when unlimited.
func (b *Budget) Remaining() int64 {
	if b.limit <= 0 {
		return -1
	}
	r := b.limit - b.used.Load()
	if r < 0 {
		return 0
	}
	return r
}
