// Package workflow schedules work units across a fixed pool of workers.
//
// The Scheduler filters units already recorded in the progress ledger,
// dispatches the rest to Concurrency workers, and collects one outcome per
// dispatched unit. Each worker runs a unit's whole pipeline before taking the
// next one. Completed units are marked in the ledger by the worker that ran
// them; failed units are left unmarked so the next run retries them from the
// fetch stage.
//
// Stopping (Stop or cancelling the run context) halts dispatch only. Units
// already in flight run to completion because stage calls receive a context
// detached from cancellation, which keeps the ledger consistent with the
// artifacts on disk and at the remote.
package workflow
