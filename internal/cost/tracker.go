package cost

import (
	"errors"
	"fmt"
)

// Tracker accumulates the cost of one transaction and enforces its
// budget.
//
// The evaluator charges the tracker before doing the work it is charging
// for. The first charge that pushes any dimension past the limit fails
// with BudgetExceededError and the transaction aborts. A tracker is never
// reset; each transaction gets its own.
type Tracker struct {
	schedule *Schedule
	limit    ExecutionCost
	used     ExecutionCost
}

// NewTracker returns a tracker charging against schedule.Limit.
func NewTracker(schedule *Schedule) *Tracker {
	return &Tracker{schedule: schedule, limit: schedule.Limit}
}

// NewTrackerWithLimit returns a tracker with an explicit limit.
func NewTrackerWithLimit(schedule *Schedule, limit ExecutionCost) *Tracker {
	return &Tracker{schedule: schedule, limit: limit}
}

// NewFreeTracker returns a tracker that measures but never fails.
func NewFreeTracker(schedule *Schedule) *Tracker {
	return &Tracker{schedule: schedule, limit: Unlimited}
}

// Charge adds the cost of op on input size n and checks the budget.
func (t *Tracker) Charge(op string, n uint64) error {
	return t.add(op, t.schedule.Cost(op, n))
}

func (t *Tracker) add(op string, c ExecutionCost) error {
	t.used = t.used.Add(c)
	if d, exceeded := t.used.Exceeds(t.limit); exceeded {
		return &BudgetExceededError{
			Op:        op,
			Dimension: d,
			Used:      t.used.Get(d),
			Limit:     t.limit.Get(d),
		}
	}
	return nil
}

// Used returns the cost accumulated so far.
func (t *Tracker) Used() ExecutionCost { return t.used }

// Limit returns the budget.
func (t *Tracker) Limit() ExecutionCost { return t.limit }

// Schedule returns the schedule the tracker charges from.
func (t *Tracker) Schedule() *Schedule { return t.schedule }

// BudgetExceededError is returned when a charge exceeds the budget.
type BudgetExceededError struct {
	Op        string    // Operation whose charge crossed the limit
	Dimension Dimension // First dimension exceeded
	Used      uint64    // Accumulated value in that dimension
	Limit     uint64    // Budget in that dimension
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("cost budget exceeded in %s by %s: %d > %d limit",
		e.Dimension, e.Op, e.Used, e.Limit)
}

// IsBudgetExceeded reports whether err is or wraps a BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
