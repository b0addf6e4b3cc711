// Package tasks runs fire-and-forget work submitted by the account pipeline
// on a small pool of background workers.
//
// # Semantics
//
// [Queue.Submit] never blocks the caller's critical path beyond enqueueing.
// With DropIfFull the task is counted and discarded when the buffer is full;
// otherwise Submit waits for space or for ctx cancellation. [Queue.Close]
// stops intake and drains every task already enqueued.
//
// # What this package must NOT do
//
//   - Retry failed tasks.
//   - Import goAccounts or any sibling internal package.
package tasks
