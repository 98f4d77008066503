// Package http exposes the focusguard core over a JSON API.
//
// The router exposes the following endpoints:
//   - GET /healthz: liveness, with whether a monitoring agent is connected.
//   - GET /metrics: Prometheus exposition of the process registry.
//   - GET /v1/schedules, POST /v1/schedules, POST /v1/schedules/import,
//     GET|PATCH|DELETE /v1/schedules/{id}, PUT /v1/schedules/{id}/enabled:
//     schedule management exchanging the scheduleDTO payload defined in
//     schedule_handler.go.
//   - GET /v1/locks, POST /v1/locks, DELETE /v1/locks/{pkg},
//     POST /v1/locks/{pkg}/emergency-unlock: the locked set and manual locks,
//     see lock_handler.go.
//   - GET|POST /v1/usage, POST /v1/usage/unlocks, GET|POST /v1/lock-events,
//     GET|DELETE /v1/insights: activity recording and insight cards, see
//     insights_handler.go.
//   - GET /v1/bridge: the monitoring agent WebSocket.
//
// Failures are rendered as {"error_code","message","errors"}.
package http
