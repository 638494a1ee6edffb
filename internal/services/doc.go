// Package services defines shared utilities consumed by the pipeline stages
// and the external tool integrations beneath them.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, unit keys, subitem names, stage
//     names, worker numbers, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     as manifest, fetch, transform, upload, or unexpected faults.
//
// Use these helpers when wiring new stage logic so error classification and
// log correlation stay uniform across the pipeline.
package services
