// Package middleware adapts HTTP requests into goAccounts engine context.
//
// # Middleware
//
//   - [ClientIP] attaches the caller address used by login throttling and audit.
//   - [RequireUser] resolves the X-User-Id / X-Auth-Token pair into the acting
//     user through Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Hash or compare tokens itself (the engine owns token lookup).
//   - Run the login gate. Authenticated API calls are not logins.
package middleware
