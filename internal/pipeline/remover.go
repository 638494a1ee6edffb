package pipeline

import (
	"context"

	"clipmill/internal/fileutil"
)

// FileRemover deletes local files with os.Remove, ignoring files already gone.
type FileRemover struct{}

func (FileRemover) Remove(_ context.Context, paths ...string) []error {
	return fileutil.RemoveFiles(paths...)
}
