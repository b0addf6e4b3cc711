// Package prometheus renders goAccounts pipeline metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads [goAccounts.Engine.MetricsSnapshot] on every
// scrape. Counters are grouped into labelled families: users by stage,
// logins by outcome, rejected logins by error code, room key writes by
// result, background tasks by result and dropped audit events by type.
// The login gate latency is the single histogram,
// accounts_validate_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
