// Package httpapi serves the account pipeline over HTTP with a chi router.
//
// Routes:
//
//	POST /v1/users              create a user
//	POST /v1/login              password or resume-token login
//	POST /v1/e2e.setRoomKeyID   set a room's e2e key id (authenticated)
//	GET  /healthz               liveness
//	GET  /metrics               Prometheus exposition
//
// Coded pipeline errors map to their Status and are rendered with their
// code as errorType.
package httpapi
