package config

const (
	defaultWorkDir                = "~/.local/share/clipmill"
	defaultRawDir                 = "raw"
	defaultOutputDir              = "processed"
	defaultLogDir                 = "~/.local/share/clipmill/logs"
	defaultLogRetentionDays       = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultManifestPath           = "manifest.json"
	defaultConcurrency            = 4
	defaultMarginRatio            = 0.02
	defaultHeartbeatSeconds       = 60
	defaultYtDlpBinary            = "yt-dlp"
	defaultURLTemplate            = "https://www.youtube.com/watch?v={key}"
	defaultFormat                 = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio"
	defaultExternalDownloader     = "aria2c"
	defaultExternalDownloaderArgs = "-x 16 -k 1M"
	defaultFetchTimeoutSeconds    = 3600
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultFFmpegLogLevel         = "error"
	defaultTransformTimeout       = 900
	defaultRcloneBinary           = "rclone"
	defaultLedgerPath             = "progress.txt"
	defaultRedisKey               = "clipmill:completed"
	defaultNtfyTimeoutSeconds     = 10
)

// Enumerated configuration values.
const (
	InvalidRecordsReject = "reject"
	InvalidRecordsSkip   = "skip"

	CleanupAfterUpload = "after-upload"
	CleanupAlways      = "always"

	FetchYtDlp  = "ytdlp"
	FetchRclone = "rclone"

	UploadRclone = "rclone"
	UploadS3     = "s3"
	UploadLocal  = "local"
	UploadNone   = "none"

	RcloneMove = "move"
	RcloneCopy = "copy"

	LedgerFile   = "file"
	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			RawDir:    defaultRawDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Manifest: Manifest{
			Path:           defaultManifestPath,
			InvalidRecords: InvalidRecordsReject,
		},
		Workflow: Workflow{
			Concurrency:      defaultConcurrency,
			MarginRatio:      defaultMarginRatio,
			Cleanup:          CleanupAfterUpload,
			HeartbeatSeconds: defaultHeartbeatSeconds,
		},
		Fetch: Fetch{
			Backend:                FetchYtDlp,
			YtDlpBinary:            defaultYtDlpBinary,
			URLTemplate:            defaultURLTemplate,
			Format:                 defaultFormat,
			ExternalDownloader:     defaultExternalDownloader,
			ExternalDownloaderArgs: defaultExternalDownloaderArgs,
			TimeoutSeconds:         defaultFetchTimeoutSeconds,
		},
		Transform: Transform{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			LogLevel:       defaultFFmpegLogLevel,
			TimeoutSeconds: defaultTransformTimeout,
		},
		Upload: Upload{
			Backend:      UploadNone,
			RcloneBinary: defaultRcloneBinary,
			RcloneMode:   RcloneMove,
		},
		Ledger: Ledger{
			Backend:  LedgerFile,
			Path:     defaultLedgerPath,
			RedisKey: defaultRedisKey,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
