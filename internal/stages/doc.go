// Package stages binds the configured backends to the pipeline's stage
// interfaces.
//
// Build turns a finalized Config into a pipeline.StageSet: yt-dlp or rclone
// for fetch, ffprobe for the frame probe, ffmpeg for transform, and rclone,
// S3, a local directory, or nothing for upload. The same upload backend
// doubles as the Lister used to rebuild the progress ledger from what already
// reached the destination.
package stages
