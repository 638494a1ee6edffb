// Command clipmill turns a JSON clip manifest into cropped, trimmed clips on
// remote storage.
//
// `clipmill run` processes every work unit the progress ledger does not yet
// record, `clipmill plan` previews that work without touching any tool, and
// the `progress` subcommands inspect or repair the ledger. `config` and
// `deps` help set up a host.
package main
