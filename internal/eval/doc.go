// Package eval executes contracts against a layered key/value state.
//
// An Evaluator is stateless between calls. Each top-level call (Deploy,
// Call, EvalExpression, TransferSTX) runs in a child of the overlay the
// caller passes in and ends in one of three states:
//
//   - StatusCommittedOk: the result is (ok ...) or not a response; writes
//     merge into the parent overlay and events are returned.
//   - StatusRolledBackErr: the result is (err ...); writes and events are
//     dropped, the value and cost are still reported.
//   - StatusAborted: a Fault stopped execution; nothing is kept.
//
// Nested contract-call? invocations get their own overlay and event
// buffer, so an (err ...) from a callee only undoes the callee.
//
// Every expression is charged to a cost.Tracker before it runs. Running
// out of budget or exceeding the call depth is a ResourceExceeded fault.
//
// Contracts are analyzed once and cached by id and source hash; the
// analyzed form is immutable and shared between calls.
package eval
