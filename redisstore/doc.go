// Package redisstore provides Redis-backed implementations of the
// goAccounts resume-token store and settings source.
//
// Resume tokens live in one sorted set per user, scored by issue time in
// milliseconds, plus a lookup key per hashed token. Settings live in a
// single hash keyed by setting id.
package redisstore
