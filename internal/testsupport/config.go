package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a finalized config seeded with unique temp directories
// per test. Heartbeats and the external downloader are disabled and uploads
// default to none.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	t.Setenv("CLIPMILL_PROXY", "")

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Manifest.Path = filepath.Join(base, "manifest.json")
	cfgVal.Workflow.HeartbeatSeconds = 0
	cfgVal.Fetch.ExternalDownloader = ""
	cfgVal.Fetch.ExternalDownloaderArgs = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Finalize(); err != nil {
		t.Fatalf("finalize test config: %v", err)
	}
	return builder.cfg
}

// WithManifest writes contents to the config's manifest path.
func WithManifest(contents string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Manifest.Path, []byte(contents), 0o644); err != nil {
			b.t.Fatalf("write manifest: %v", err)
		}
	}
}

// WithSettings applies arbitrary edits before the config is finalized.
func WithSettings(edit func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		edit(b.cfg)
	}
}

// WithLocalUpload delivers clips into a "delivered" directory under the
// test's base directory.
func WithLocalUpload() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Backend = config.UploadLocal
		b.cfg.Upload.LocalDir = filepath.Join(b.baseDir, "delivered")
	}
}

// WithStubbedBinaries writes stub executables for the provided names,
// prepends them to PATH, and points the config's tool paths at them. If
// names is empty, yt-dlp, ffprobe, ffmpeg, and rclone are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffprobe", "ffmpeg", "rclone"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "yt-dlp":
				b.cfg.Fetch.YtDlpBinary = target
			case "ffprobe":
				b.cfg.Transform.FFprobeBinary = target
			case "ffmpeg":
				b.cfg.Transform.FFmpegBinary = target
			case "rclone":
				b.cfg.Upload.RcloneBinary = target
			}
		}

		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}

// WriteConfig encodes cfg as TOML under the base directory and returns the
// file path, for tests that drive config loading.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "clipmill.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
