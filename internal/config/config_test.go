package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipmill/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLIPMILL_PROXY", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "clipmill")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.RawDir != filepath.Join(wantWork, "raw") {
		t.Fatalf("unexpected raw dir: %q", cfg.Paths.RawDir)
	}
	if cfg.Paths.OutputDir != filepath.Join(wantWork, "processed") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Ledger.Path != filepath.Join(wantWork, "progress.txt") {
		t.Fatalf("unexpected ledger path: %q", cfg.Ledger.Path)
	}
	if cfg.Workflow.Concurrency != 4 {
		t.Fatalf("unexpected concurrency: %d", cfg.Workflow.Concurrency)
	}
	if cfg.Workflow.MarginRatio != 0.02 {
		t.Fatalf("unexpected margin ratio: %v", cfg.Workflow.MarginRatio)
	}
	if cfg.Upload.Backend != config.UploadNone {
		t.Fatalf("expected upload disabled by default, got %q", cfg.Upload.Backend)
	}
	if cfg.Metrics.TextfilePath != "" {
		t.Fatalf("expected metrics export disabled by default, got %q", cfg.Metrics.TextfilePath)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "clipmill.toml")

	content := `[paths]
work_dir = "` + filepath.ToSlash(filepath.Join(dir, "work")) + `"
raw_dir = "/tmp/raw"

[workflow]
concurrency = 8
cleanup = "ALWAYS"

[upload]
backend = "rclone"
rclone_remote = "dropbox:clips/"

[ledger]
backend = "sqlite"
path = ""
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Paths.RawDir != "/tmp/raw" {
		t.Fatalf("absolute raw dir should be kept, got %q", cfg.Paths.RawDir)
	}
	if cfg.Workflow.Concurrency != 8 {
		t.Fatalf("unexpected concurrency: %d", cfg.Workflow.Concurrency)
	}
	if cfg.Workflow.Cleanup != config.CleanupAlways {
		t.Fatalf("expected cleanup normalized to always, got %q", cfg.Workflow.Cleanup)
	}
	if cfg.Upload.RcloneRemote != "dropbox:clips" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Upload.RcloneRemote)
	}
	if cfg.Ledger.Path != filepath.Join(dir, "work", "progress.db") {
		t.Fatalf("unexpected sqlite ledger path: %q", cfg.Ledger.Path)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[workflow]\nconcurency = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLIPMILL_PROXY", "socks5://127.0.0.1:1080")
	t.Setenv("CLIPMILL_REDIS_PASSWORD", "hunter2")

	cfg := config.Default()
	cfg.Ledger.Backend = config.LedgerRedis
	cfg.Ledger.RedisAddr = "localhost:6379"
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if cfg.Fetch.Proxy != "socks5://127.0.0.1:1080" {
		t.Fatalf("expected proxy from env, got %q", cfg.Fetch.Proxy)
	}
	if cfg.Ledger.RedisPassword != "hunter2" {
		t.Fatalf("expected redis password from env, got %q", cfg.Ledger.RedisPassword)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"concurrency", func(c *config.Config) { c.Workflow.Concurrency = 0 }, "workflow.concurrency"},
		{"margin", func(c *config.Config) { c.Workflow.MarginRatio = -0.1 }, "workflow.margin_ratio"},
		{"cleanup", func(c *config.Config) { c.Workflow.Cleanup = "never" }, "workflow.cleanup"},
		{"invalid records", func(c *config.Config) { c.Manifest.InvalidRecords = "ignore" }, "manifest.invalid_records"},
		{"fetch backend", func(c *config.Config) { c.Fetch.Backend = "ftp" }, "fetch.backend"},
		{"url template", func(c *config.Config) { c.Fetch.URLTemplate = "https://example.com/" }, "{key}"},
		{"rclone source", func(c *config.Config) { c.Fetch.Backend = config.FetchRclone }, "fetch.rclone_source"},
		{"rclone remote", func(c *config.Config) { c.Upload.Backend = config.UploadRclone }, "upload.rclone_remote"},
		{"rclone mode", func(c *config.Config) {
			c.Upload.Backend = config.UploadRclone
			c.Upload.RcloneRemote = "remote:x"
			c.Upload.RcloneMode = "sync"
		}, "upload.rclone_mode"},
		{"s3 bucket", func(c *config.Config) { c.Upload.Backend = config.UploadS3 }, "upload.s3_bucket"},
		{"local dir", func(c *config.Config) { c.Upload.Backend = config.UploadLocal }, "upload.local_dir"},
		{"ledger backend", func(c *config.Config) { c.Ledger.Backend = "etcd" }, "ledger.backend"},
		{"redis addr", func(c *config.Config) { c.Ledger.Backend = config.LedgerRedis }, "ledger.redis_addr"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/clips" }, "notifications.ntfy_topic"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Finalize()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	for _, section := range []string{"paths", "manifest", "workflow", "fetch", "transform", "upload", "ledger", "metrics", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Fatalf("sample config missing [%s]", section)
		}
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Upload.Backend = config.UploadLocal
	cfg.Upload.LocalDir = filepath.Join(base, "dest")
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.RawDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Upload.LocalDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestExpandPathTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/clips")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "clips") {
		t.Fatalf("ExpandPath = %q, want %q", got, filepath.Join(home, "clips"))
	}
}
