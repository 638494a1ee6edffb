package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateManifest(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateManifest() error {
	switch c.Manifest.InvalidRecords {
	case InvalidRecordsReject, InvalidRecordsSkip:
		return nil
	default:
		return fmt.Errorf("manifest.invalid_records must be %q or %q, got %q", InvalidRecordsReject, InvalidRecordsSkip, c.Manifest.InvalidRecords)
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Concurrency < 1 {
		return fmt.Errorf("workflow.concurrency must be at least 1, got %d", c.Workflow.Concurrency)
	}
	if c.Workflow.MarginRatio < 0 {
		return errors.New("workflow.margin_ratio must be non-negative")
	}
	if c.Workflow.HeartbeatSeconds < 0 {
		return errors.New("workflow.heartbeat_seconds must be non-negative")
	}
	switch c.Workflow.Cleanup {
	case CleanupAfterUpload, CleanupAlways:
	default:
		return fmt.Errorf("workflow.cleanup must be %q or %q, got %q", CleanupAfterUpload, CleanupAlways, c.Workflow.Cleanup)
	}
	return nil
}

func (c *Config) validateFetch() error {
	switch c.Fetch.Backend {
	case FetchYtDlp:
		if !strings.Contains(c.Fetch.URLTemplate, "{key}") {
			return errors.New("fetch.url_template must contain the {key} placeholder")
		}
	case FetchRclone:
		if c.Fetch.RcloneSource == "" {
			return errors.New("fetch.rclone_source is required when fetch.backend is rclone")
		}
	default:
		return fmt.Errorf("fetch.backend must be %q or %q, got %q", FetchYtDlp, FetchRclone, c.Fetch.Backend)
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.Backend {
	case UploadNone:
	case UploadRclone:
		if c.Upload.RcloneRemote == "" {
			return errors.New("upload.rclone_remote is required when upload.backend is rclone")
		}
		if c.Upload.RcloneMode != RcloneMove && c.Upload.RcloneMode != RcloneCopy {
			return fmt.Errorf("upload.rclone_mode must be %q or %q, got %q", RcloneMove, RcloneCopy, c.Upload.RcloneMode)
		}
	case UploadS3:
		if c.Upload.S3Bucket == "" {
			return errors.New("upload.s3_bucket is required when upload.backend is s3")
		}
		if (c.Upload.S3AccessKeyID == "") != (c.Upload.S3SecretAccessKey == "") {
			return errors.New("upload.s3_access_key_id and upload.s3_secret_access_key must be set together")
		}
	case UploadLocal:
		if c.Upload.LocalDir == "" {
			return errors.New("upload.local_dir is required when upload.backend is local")
		}
	default:
		return fmt.Errorf("upload.backend must be one of rclone, s3, local, none; got %q", c.Upload.Backend)
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case LedgerFile, LedgerSQLite:
		if c.Ledger.Path == "" {
			return errors.New("ledger.path must be set")
		}
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			return errors.New("ledger.redis_addr is required when ledger.backend is redis")
		}
		if c.Ledger.RedisDB < 0 {
			return errors.New("ledger.redis_db must be non-negative")
		}
	default:
		return fmt.Errorf("ledger.backend must be one of file, sqlite, redis; got %q", c.Ledger.Backend)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}
	return nil
}
