// Package observability provides structured logging and Prometheus metrics for the
// ingest API.
//
// Logs never carry raw client addresses, secrets or unredacted payloads; metric labels
// are bounded enums only (outcome, reason, webhook type), never guest or session ids.
package observability
