// Package rclone wraps the rclone CLI for the three places clipmill talks to
// an rclone remote: fetching a unit's source (Fetcher), delivering finished
// clips (Uploader), and listing the destination when the progress ledger is
// rebuilt (Client.List).
package rclone
