package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"clipmill/internal/config"
	"clipmill/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// Requirements lists the binaries the configured backends invoke.
func Requirements(cfg *config.Config) []deps.Requirement {
	var reqs []deps.Requirement
	if cfg.Fetch.Backend == config.FetchYtDlp {
		reqs = append(reqs, deps.Requirement{
			Name:        "yt-dlp",
			Command:     cfg.Fetch.YtDlpBinary,
			Description: "Required to download sources",
		})
		if cfg.Fetch.ExternalDownloader != "" {
			reqs = append(reqs, deps.Requirement{
				Name:        cfg.Fetch.ExternalDownloader,
				Command:     cfg.Fetch.ExternalDownloader,
				Description: "External downloader passed to yt-dlp",
			})
		}
	}
	reqs = append(reqs,
		deps.Requirement{
			Name:        "FFprobe",
			Command:     cfg.Transform.FFprobeBinary,
			Description: "Required to read source dimensions",
		},
		deps.Requirement{
			Name:        "FFmpeg",
			Command:     cfg.Transform.FFmpegBinary,
			Description: "Required to crop and trim clips",
		},
	)
	if cfg.NeedsRclone() {
		reqs = append(reqs, deps.Requirement{
			Name:        "rclone",
			Command:     cfg.Upload.RcloneBinary,
			Description: "Required for rclone fetch or upload",
		})
	}
	return reqs
}

// CheckSystemDeps evaluates every binary the configuration depends on. Both
// the run command and "clipmill deps" use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(Requirements(cfg))
}
