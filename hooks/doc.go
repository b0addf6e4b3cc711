// Package hooks provides ordered, typed handler chains used as extension
// points by the account lifecycle pipeline.
//
// # Semantics
//
// A [Chain] runs its handlers in registration order. Each handler receives the
// value returned by the previous one and may rewrite it. The first error aborts
// the chain and is returned unchanged, so a handler can veto the operation that
// invoked it.
//
// # What this package must NOT do
//
//   - Schedule handlers asynchronously (callers decide whether a chain is awaited).
//   - Import goAccounts or any sibling package.
package hooks
