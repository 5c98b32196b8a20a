// Package telemetry sets up the OpenTelemetry SDK for NodeFlow and traces
// logic flow runs. When telemetry is disabled no exporter is created and
// the global providers stay noop.
package telemetry
