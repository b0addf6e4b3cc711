// Package goAccounts implements the account lifecycle pipeline of a team-chat
// server: the decisions and side effects around user creation, new-user
// validation, login validation and post-login resume-token hygiene.
//
// The host supplies collaborators (user, role, room and resume-token stores,
// a settings source, mailer, app-event trigger, login limiter, channel joiner
// and avatar service) through interfaces. The [Engine] composes them in a
// fixed order and owns none of them.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goAccounts is the public surface. It exposes [Engine], [Builder], [Config],
// [Settings] and the value types that cross collaborator interfaces. Audit
// delivery, background tasks and Redis rate limiting live under internal/.
// Concrete stores live in pgstore and redisstore.
//
// # What this package must NOT do
//
//   - Hold settings across invocations. Every pipeline call reads one
//     [Settings] snapshot from its [SettingsSource].
//   - Roll back side effects (sent mail, fired app events) when a later step
//     fails.
//   - Import any sub-package that re-imports goAccounts.
package goAccounts
