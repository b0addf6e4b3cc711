// Package rate implements the Redis-backed failed-login limiter consulted by
// login validation.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - lfu: failed logins per username
//   - lfi: failed logins per client IP
//
// An identifier is blocked once its counter reaches the configured attempt
// budget and stays blocked until the window key expires or is reset.
//
// # What this package must NOT do
//
//   - Decide login outcomes. It only answers "is this identifier blocked".
//   - Be imported outside the goAccounts module.
package rate
