package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the working directories used by a run.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	RawDir    string `toml:"raw_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Manifest describes the clip manifest consumed at startup.
type Manifest struct {
	Path string `toml:"path"`
	// InvalidRecords selects the loader policy: "reject" fails the whole batch,
	// "skip" drops and logs only the malformed record.
	InvalidRecords string `toml:"invalid_records"`
}

// Workflow contains scheduler and pipeline settings.
type Workflow struct {
	Concurrency int     `toml:"concurrency"`
	MarginRatio float64 `toml:"margin_ratio"`
	// Cleanup is "after-upload" (artifacts removed only once uploaded) or
	// "always" (artifacts removed regardless of upload outcome).
	Cleanup string `toml:"cleanup"`
	// HeartbeatSeconds is how often in-flight progress is logged; 0 disables it.
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
}

// Fetch configures how each unit's shared source is acquired.
type Fetch struct {
	Backend                string   `toml:"backend"`
	YtDlpBinary            string   `toml:"ytdlp_binary"`
	URLTemplate            string   `toml:"url_template"`
	Format                 string   `toml:"format"`
	Proxy                  string   `toml:"proxy"`
	ExternalDownloader     string   `toml:"external_downloader"`
	ExternalDownloaderArgs string   `toml:"external_downloader_args"`
	ExtraArgs              []string `toml:"extra_args"`
	RcloneSource           string   `toml:"rclone_source"`
	TimeoutSeconds         int      `toml:"timeout_seconds"`
}

// Transform configures the probe and clip tools.
type Transform struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	LogLevel       string `toml:"loglevel"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Upload configures the remote destination for finished clips.
type Upload struct {
	Backend      string `toml:"backend"`
	RcloneBinary string `toml:"rclone_binary"`
	RcloneRemote string `toml:"rclone_remote"`
	RcloneMode   string `toml:"rclone_mode"`
	LocalDir     string `toml:"local_dir"`
	S3Bucket     string `toml:"s3_bucket"`
	S3Prefix     string `toml:"s3_prefix"`
	S3Region     string `toml:"s3_region"`
	S3Endpoint   string `toml:"s3_endpoint"`
	S3PathStyle  bool   `toml:"s3_path_style"`
	// Static credentials for S3-compatible stores. When empty the default
	// AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id"`
	S3SecretAccessKey string `toml:"s3_secret_access_key"`
}

// Ledger configures the durable record of completed units.
type Ledger struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisKey      string `toml:"redis_key"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Metrics configures end-of-run metric export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Notifications configures run notifications.
type Notifications struct {
	// NtfyTopic is the full ntfy topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for clipmill.
//
// Configuration sections by subsystem:
//   - Paths: working, raw download, clip output, and log directories
//   - Manifest: input manifest path and malformed-record policy
//   - Workflow: pool size, crop margin, and artifact cleanup policy
//   - Fetch: source acquisition via yt-dlp or rclone
//   - Transform: ffprobe/ffmpeg binaries and limits
//   - Upload: rclone, S3, local directory, or none
//   - Ledger: progress ledger backend (file, sqlite, redis)
//   - Metrics: Prometheus textfile export
//   - Notifications: ntfy run notifications
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Manifest      Manifest      `toml:"manifest"`
	Workflow      Workflow      `toml:"workflow"`
	Fetch         Fetch         `toml:"fetch"`
	Transform     Transform     `toml:"transform"`
	Upload        Upload        `toml:"upload"`
	Ledger        Ledger        `toml:"ledger"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipmill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes and validates a config that was built or modified in
// code, for example after command-line overrides.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipmill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.RawDir, c.Paths.OutputDir, c.Paths.LogDir}
	if c.Ledger.Backend != LedgerRedis {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}
	if c.Upload.Backend == UploadLocal {
		dirs = append(dirs, c.Upload.LocalDir)
	}
	if c.Metrics.TextfilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Metrics.TextfilePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// NeedsRclone reports whether any configured stage shells out to rclone.
func (c *Config) NeedsRclone() bool {
	return c.Fetch.Backend == FetchRclone || c.Upload.Backend == UploadRclone
}
