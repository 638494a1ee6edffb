// Package ytdlp fetches a work unit's shared source video with yt-dlp.
//
// The group key is substituted into a URL template and the download lands at
// <raw_dir>/<key>.mp4. An existing file at that path is reused without
// invoking yt-dlp, so a unit retried after a transform or upload failure does
// not download its source again.
package ytdlp
