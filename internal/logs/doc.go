// Package logs reads clipmill run logs.
//
// Run logs are JSON lines written by internal/logging. Tail reads the last
// lines of a log (optionally following it as a run appends), and Filter
// narrows decoded records to one work unit, a minimum level, or an event
// type so `clipmill logs` can answer "what happened to this group?".
package logs
