// Package batchrun wires configuration, logging, preflight checks, the
// manifest, the progress ledger, stage bindings, and the scheduler into a
// single batch run.
//
// Everything that can fail before dispatch (missing tools, unwritable
// directories, an unreadable manifest, a locked ledger) is returned as an
// error so the CLI exits non-zero. Once dispatch starts, unit failures are
// reported in the returned RunStats and Run itself succeeds.
package batchrun
