// Package preflight verifies that a run can succeed before any unit is
// dispatched.
//
// RunAll checks that every directory the run writes into is readable and
// writable. CheckSystemDeps reports the external tools the configured fetch,
// transform, and upload backends need. The run command refuses to start when
// either reports a required failure, so a misconfigured host fails fast
// instead of failing every unit.
package preflight
