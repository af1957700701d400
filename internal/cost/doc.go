// Package cost implements execution cost accounting.
//
// A Schedule maps operation names to cost functions over an input size,
// one per dimension (runtime, read_count, read_length, write_count,
// write_length). A Tracker sums the charges of one transaction and fails
// with BudgetExceededError as soon as any dimension passes the limit.
//
// Schedules are plain data. DefaultSchedule is compiled in; LoadSchedule
// reads an override document in CUE, validated against an embedded
// schema.
package cost
