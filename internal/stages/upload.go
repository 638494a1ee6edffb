package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"clipmill/internal/fileutil"
	"clipmill/internal/services"
)

// Lister reports which clip names already exist at the upload destination.
type Lister interface {
	List(ctx context.Context) ([]string, error)
	Destination() string
}

// ErrNoDestination is returned when the upload backend has nothing to list.
var ErrNoDestination = errors.New("upload backend has no remote destination")

// LocalUploader copies clips into a directory and verifies each copy.
type LocalUploader struct {
	Dir string
}

// Upload copies path into the directory under its base name.
func (u LocalUploader) Upload(_ context.Context, path string) error {
	dst := filepath.Join(u.Dir, filepath.Base(path))
	if err := fileutil.CopyFileVerified(path, dst); err != nil {
		return services.Wrap(services.ErrUpload, "upload", "local copy", dst, err)
	}
	return nil
}

// List returns the regular files in the directory.
func (u LocalUploader) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(u.Dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Destination is the target directory.
func (u LocalUploader) Destination() string { return u.Dir }

// NoopUploader accepts every clip without moving it. Build pairs it with
// pipeline.Options.KeepArtifacts so clips stay in the output directory.
type NoopUploader struct{}

// Upload does nothing.
func (NoopUploader) Upload(context.Context, string) error { return nil }
