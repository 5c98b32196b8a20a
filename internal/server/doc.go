/*
Package server hosts the read-only inspection API of nodeflow.

Manager wraps net/http.Server with non-blocking Start, Run(ctx) and
graceful Shutdown; it serves HTTPS when a certificate pair is
configured. Handler mounts:

  - GET /healthz: registered HealthCheck probes, 503 when any fails.
  - GET /runs and GET /runs/{id}: recorded runs from a history.Store.
  - GET /node-types and GET /node-types/{name}: the node type registry.
  - the Prometheus metrics path, when a Gatherer is supplied.

Middleware covers panic recovery, request ids, request logging, HTTP
metrics, OpenTelemetry server spans, per-IP rate limiting and optional
HS256 bearer authentication.
*/
package server
