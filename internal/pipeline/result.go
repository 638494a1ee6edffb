package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clipmill/internal/framing"
)

// State is a unit's position in the pipeline.
type State string

const (
	StatePending      State = "pending"
	StateFetching     State = "fetching"
	StateTransforming State = "transforming"
	StateUploading    State = "uploading"
	StateCleaning     State = "cleaning"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// CleanupPolicy decides which artifacts are deleted after a unit.
type CleanupPolicy string

const (
	// CleanupAfterUpload deletes an artifact only once it was uploaded.
	CleanupAfterUpload CleanupPolicy = "after-upload"
	// CleanupAlways deletes every artifact regardless of upload outcome.
	CleanupAlways CleanupPolicy = "always"
)

// ParseCleanupPolicy maps a config value to a CleanupPolicy.
func ParseCleanupPolicy(value string) (CleanupPolicy, error) {
	switch CleanupPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", CleanupAfterUpload:
		return CleanupAfterUpload, nil
	case CleanupAlways:
		return CleanupAlways, nil
	default:
		return "", fmt.Errorf("unknown cleanup policy %q", value)
	}
}

// SubItemResult records what happened to one subitem.
type SubItemResult struct {
	OutputName   string
	Artifact     string
	Crop         framing.PixelRect
	TransformErr error
	UploadErr    error
	Uploaded     bool
	Removed      bool
}

// Transformed reports whether an artifact was produced.
func (r SubItemResult) Transformed() bool {
	return r.TransformErr == nil && r.Artifact != ""
}

// Err returns the subitem's failure, if any.
func (r SubItemResult) Err() error {
	if r.TransformErr != nil {
		return r.TransformErr
	}
	return r.UploadErr
}

// UnitResult is the outcome of running one work unit.
type UnitResult struct {
	GroupKey  string
	State     State
	Source    string
	Frame     framing.Frame
	FetchErr  error
	Items     []SubItemResult
	Started   time.Time
	Duration  time.Duration
	Fetch     time.Duration
	Transform time.Duration
	Upload    time.Duration
}

// Completed reports whether the unit may be recorded in the ledger.
func (r UnitResult) Completed() bool {
	return r.State == StateCompleted
}

// FailedStage names the earliest stage that failed, or "" for a completed unit.
func (r UnitResult) FailedStage() string {
	if r.FetchErr != nil {
		return "fetch"
	}
	for _, item := range r.Items {
		if item.TransformErr != nil {
			return "transform"
		}
	}
	for _, item := range r.Items {
		if item.UploadErr != nil {
			return "upload"
		}
	}
	return ""
}

// Err joins every failure recorded for the unit.
func (r UnitResult) Err() error {
	errs := []error{r.FetchErr}
	for _, item := range r.Items {
		errs = append(errs, item.Err())
	}
	return errors.Join(errs...)
}

// Counts returns how many subitems transformed and uploaded.
func (r UnitResult) Counts() (transformed, uploaded int) {
	for _, item := range r.Items {
		if item.Transformed() {
			transformed++
		}
		if item.Uploaded {
			uploaded++
		}
	}
	return transformed, uploaded
}
