// Package ffmpeg produces one clip per subitem by cropping and trimming the
// shared source with ffmpeg.
package ffmpeg
