package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrManifest      = errors.New("manifest error")
	ErrFetch         = errors.New("fetch failed")
	ErrTransform     = errors.New("transform failed")
	ErrUpload        = errors.New("upload failed")
	ErrUnexpected    = errors.New("unexpected failure")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrLedger        = errors.New("progress ledger error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrUnexpected
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err. It is used as the
// error_kind log field.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrManifest):
		return "manifest"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrTransform):
		return "transform"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrLedger):
		return "ledger"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unexpected"
	}
}

// IsFatal reports whether err must abort a run before any unit is dispatched.
func IsFatal(err error) bool {
	return errors.Is(err, ErrManifest) || errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
