// Package ledger records which work units have fully completed so a batch
// run can be stopped and restarted without repeating finished work.
//
// Ledger keeps the completed set in memory behind a mutex and persists every
// new key through a Backend before it becomes visible: a key reported as
// marked survives a crash, and a crash mid-write never leaves a partial key.
// Three backends are provided: an append-only text file (the default, one
// key per line), SQLite, and a Redis set for ledgers shared between hosts.
package ledger
