// Package internal contains helpers that are private to goAccounts.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - httpapi: reference HTTP surface over the Engine
//   - rate: Redis-backed failed-login limiter
//   - tasks: background queue for fire-and-forget pipeline steps
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccounts API.
//   - Be imported by any package outside the goAccounts module.
package internal
