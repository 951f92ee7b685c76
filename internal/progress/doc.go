// Package progress carries bulk-export progress events from the export
// pipeline to pluggable sinks (structured logs, Prometheus) without ever
// blocking the pipeline.
package progress
