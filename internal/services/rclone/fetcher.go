package rclone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clipmill/internal/fileutil"
	"clipmill/internal/logging"
	"clipmill/internal/services"
	"clipmill/internal/textutil"
)

// Fetcher copies <source>/<key>.mp4 from a remote into the raw directory.
type Fetcher struct {
	client *Client
	source string
	rawDir string
}

// NewFetcher constructs a Fetcher.
func NewFetcher(client *Client, source, rawDir string) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("rclone client required")
	}
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("rclone source required")
	}
	if strings.TrimSpace(rawDir) == "" {
		return nil, errors.New("raw directory required")
	}
	return &Fetcher{client: client, source: source, rawDir: rawDir}, nil
}

// Fetch copies the source for key unless it is already present locally.
func (f *Fetcher) Fetch(ctx context.Context, key string) (string, error) {
	if err := textutil.ValidateGroupKey(key); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "validate", fmt.Sprintf("group key %q", key), err)
	}
	name := key + ".mp4"
	dest := filepath.Join(f.rawDir, name)
	if fileutil.IsRegularFile(dest) {
		logging.WithContext(ctx, f.client.logger).Info("reusing downloaded source",
			logging.String("source", dest),
			logging.String(logging.FieldEventType, "fetch_reused"),
		)
		return dest, nil
	}
	if err := os.MkdirAll(f.rawDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "prepare", f.rawDir, err)
	}
	src := JoinRemote(f.source, name)
	if err := f.client.Transfer(ctx, ModeCopy, src, dest); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "rclone", src, err)
	}
	if !fileutil.IsRegularFile(dest) {
		return "", services.Wrap(services.ErrFetch, "fetch", "rclone", fmt.Sprintf("no output at %s", dest), nil)
	}
	return dest, nil
}
