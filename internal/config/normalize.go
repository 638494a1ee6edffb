package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeManifest()
	c.normalizeWorkflow()
	c.normalizeFetch()
	c.normalizeTransform()
	if err := c.normalizeUpload(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

// resolveUnder expands value, treating relative paths as relative to base.
func resolveUnder(base, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) && base != "" {
		value = filepath.Join(base, value)
	}
	return expandPath(value)
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RawDir) == "" {
		c.Paths.RawDir = defaultRawDir
	}
	if c.Paths.RawDir, err = resolveUnder(c.Paths.WorkDir, c.Paths.RawDir); err != nil {
		return fmt.Errorf("paths.raw_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = resolveUnder(c.Paths.WorkDir, c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = resolveUnder(c.Paths.WorkDir, c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeManifest() {
	c.Manifest.Path = strings.TrimSpace(c.Manifest.Path)
	c.Manifest.InvalidRecords = strings.ToLower(strings.TrimSpace(c.Manifest.InvalidRecords))
	if c.Manifest.InvalidRecords == "" {
		c.Manifest.InvalidRecords = InvalidRecordsReject
	}
}

// ResolveManifestPath expands the manifest path. Relative paths resolve
// against the working directory of the invoking process, not work_dir.
func (c *Config) ResolveManifestPath() (string, error) {
	if c.Manifest.Path == "" {
		return "", nil
	}
	return expandPath(c.Manifest.Path)
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.Cleanup = strings.ToLower(strings.TrimSpace(c.Workflow.Cleanup))
	if c.Workflow.Cleanup == "" {
		c.Workflow.Cleanup = CleanupAfterUpload
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.Backend = strings.ToLower(strings.TrimSpace(c.Fetch.Backend))
	if c.Fetch.Backend == "" {
		c.Fetch.Backend = FetchYtDlp
	}
	c.Fetch.YtDlpBinary = strings.TrimSpace(c.Fetch.YtDlpBinary)
	if c.Fetch.YtDlpBinary == "" {
		c.Fetch.YtDlpBinary = defaultYtDlpBinary
	}
	c.Fetch.URLTemplate = strings.TrimSpace(c.Fetch.URLTemplate)
	if c.Fetch.URLTemplate == "" {
		c.Fetch.URLTemplate = defaultURLTemplate
	}
	c.Fetch.Format = strings.TrimSpace(c.Fetch.Format)
	c.Fetch.Proxy = strings.TrimSpace(c.Fetch.Proxy)
	if c.Fetch.Proxy == "" {
		if value, ok := os.LookupEnv("CLIPMILL_PROXY"); ok {
			c.Fetch.Proxy = strings.TrimSpace(value)
		}
	}
	c.Fetch.ExternalDownloader = strings.TrimSpace(c.Fetch.ExternalDownloader)
	c.Fetch.ExternalDownloaderArgs = strings.TrimSpace(c.Fetch.ExternalDownloaderArgs)
	c.Fetch.RcloneSource = strings.TrimRight(strings.TrimSpace(c.Fetch.RcloneSource), "/")
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
}

func (c *Config) normalizeTransform() {
	c.Transform.FFmpegBinary = strings.TrimSpace(c.Transform.FFmpegBinary)
	if c.Transform.FFmpegBinary == "" {
		c.Transform.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transform.FFprobeBinary = strings.TrimSpace(c.Transform.FFprobeBinary)
	if c.Transform.FFprobeBinary == "" {
		c.Transform.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transform.LogLevel = strings.ToLower(strings.TrimSpace(c.Transform.LogLevel))
	if c.Transform.LogLevel == "" {
		c.Transform.LogLevel = defaultFFmpegLogLevel
	}
	if c.Transform.TimeoutSeconds <= 0 {
		c.Transform.TimeoutSeconds = defaultTransformTimeout
	}
}

func (c *Config) normalizeUpload() error {
	c.Upload.Backend = strings.ToLower(strings.TrimSpace(c.Upload.Backend))
	if c.Upload.Backend == "" {
		c.Upload.Backend = UploadNone
	}
	c.Upload.RcloneBinary = strings.TrimSpace(c.Upload.RcloneBinary)
	if c.Upload.RcloneBinary == "" {
		c.Upload.RcloneBinary = defaultRcloneBinary
	}
	c.Upload.RcloneRemote = strings.TrimRight(strings.TrimSpace(c.Upload.RcloneRemote), "/")
	c.Upload.RcloneMode = strings.ToLower(strings.TrimSpace(c.Upload.RcloneMode))
	if c.Upload.RcloneMode == "" {
		c.Upload.RcloneMode = RcloneMove
	}
	c.Upload.S3Bucket = strings.TrimSpace(c.Upload.S3Bucket)
	c.Upload.S3Prefix = strings.Trim(strings.TrimSpace(c.Upload.S3Prefix), "/")
	c.Upload.S3Region = strings.TrimSpace(c.Upload.S3Region)
	c.Upload.S3Endpoint = strings.TrimSpace(c.Upload.S3Endpoint)
	c.Upload.S3AccessKeyID = strings.TrimSpace(c.Upload.S3AccessKeyID)
	if c.Upload.S3SecretAccessKey == "" {
		if value, ok := os.LookupEnv("CLIPMILL_S3_SECRET_ACCESS_KEY"); ok {
			c.Upload.S3SecretAccessKey = value
		}
	}
	var err error
	if c.Upload.LocalDir, err = expandPath(strings.TrimSpace(c.Upload.LocalDir)); err != nil {
		return fmt.Errorf("upload.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = LedgerFile
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
		if c.Ledger.Backend == LedgerSQLite {
			c.Ledger.Path = "progress.db"
		}
	}
	var err error
	if c.Ledger.Path, err = resolveUnder(c.Paths.WorkDir, c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	c.Ledger.RedisAddr = strings.TrimSpace(c.Ledger.RedisAddr)
	c.Ledger.RedisKey = strings.TrimSpace(c.Ledger.RedisKey)
	if c.Ledger.RedisKey == "" {
		c.Ledger.RedisKey = defaultRedisKey
	}
	if c.Ledger.RedisPassword == "" {
		if value, ok := os.LookupEnv("CLIPMILL_REDIS_PASSWORD"); ok {
			c.Ledger.RedisPassword = value
		}
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.TextfilePath, err = resolveUnder(c.Paths.WorkDir, c.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
