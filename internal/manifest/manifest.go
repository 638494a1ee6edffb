package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"clipmill/internal/framing"
	"clipmill/internal/logging"
	"clipmill/internal/services"
	"clipmill/internal/textutil"
)

// Policy selects how malformed records are handled.
type Policy string

const (
	// PolicyReject fails the whole load on the first malformed record.
	PolicyReject Policy = "reject"
	// PolicySkip drops malformed records and keeps loading.
	PolicySkip Policy = "skip"
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown invalid-record policy %q", value)
	}
}

// TimeRange is a clip window in seconds.
type TimeRange struct {
	StartSec float64
	EndSec   float64
}

// Duration returns the window length in seconds.
func (r TimeRange) Duration() float64 { return r.EndSec - r.StartSec }

// SubItem is one requested clip.
type SubItem struct {
	OutputName string
	Range      TimeRange
	Region     framing.Rect
}

// WorkUnit groups every SubItem that shares a source.
type WorkUnit struct {
	GroupKey string
	SubItems []SubItem
}

// Batch is the result of loading a manifest.
type Batch struct {
	Units    []WorkUnit
	Records  int
	Rejected []*MalformedRecordError
}

// SubItemCount returns the number of accepted records.
func (b *Batch) SubItemCount() int {
	total := 0
	for _, unit := range b.Units {
		total += len(unit.SubItems)
	}
	return total
}

// MalformedRecordError describes a record that cannot become a SubItem.
type MalformedRecordError struct {
	OutputName string
	Field      string
	Reason     string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %q: %s", e.OutputName, e.Reason)
	}
	return fmt.Sprintf("record %q: %s: %s", e.OutputName, e.Field, e.Reason)
}

// Options configures Load.
type Options struct {
	Policy Policy
	Logger *slog.Logger
}

type rawRecord struct {
	GroupKey string       `json:"group_key"`
	YtbID    string       `json:"ytb_id"`
	Duration *rawDuration `json:"duration"`
	Region   *rawRect     `json:"region"`
	BBox     *rawRect     `json:"bbox"`
}

type rawRect struct {
	Top    *float64 `json:"top"`
	Bottom *float64 `json:"bottom"`
	Left   *float64 `json:"left"`
	Right  *float64 `json:"right"`
}

func (r *rawRect) rect() (framing.Rect, string) {
	for _, f := range []struct {
		name  string
		value *float64
	}{{"top", r.Top}, {"bottom", r.Bottom}, {"left", r.Left}, {"right", r.Right}} {
		if f.value == nil {
			return framing.Rect{}, f.name
		}
	}
	return framing.Rect{Top: *r.Top, Bottom: *r.Bottom, Left: *r.Left, Right: *r.Right}, ""
}

type rawDuration struct {
	StartSec *float64 `json:"start_sec"`
	EndSec   *float64 `json:"end_sec"`
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, opts Options) (*Batch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrManifest, "manifest", "open", "cannot open manifest", err)
	}
	defer file.Close()
	return Load(file, opts)
}

// Load decodes a manifest stream into work units.
func Load(r io.Reader, opts Options) (*Batch, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyReject
	}
	logger := logging.NewComponentLogger(opts.Logger, "manifest")

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, services.Wrap(services.ErrManifest, "manifest", "decode", "manifest is not valid JSON", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, services.Wrap(services.ErrManifest, "manifest", "decode", "manifest must be a JSON object keyed by output name", nil)
	}

	batch := &Batch{}
	index := map[string]int{}
	seen := map[string]struct{}{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, services.Wrap(services.ErrManifest, "manifest", "decode", "read record key", err)
		}
		name, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, services.Wrap(services.ErrManifest, "manifest", "decode", fmt.Sprintf("read record %q", name), err)
		}
		batch.Records++

		item, groupKey, recErr := parseRecord(name, raw, seen)
		if recErr != nil {
			if policy == PolicyReject {
				return nil, services.Wrap(services.ErrManifest, "manifest", "validate", "malformed record", recErr)
			}
			batch.Rejected = append(batch.Rejected, recErr)
			logging.WarnWithContext(logger, "malformed manifest record skipped", "manifest_record_skipped",
				logging.String(logging.FieldOutputName, recErr.OutputName),
				logging.String("field", recErr.Field),
				logging.String("reason", recErr.Reason),
				logging.String(logging.FieldErrorHint, "fix the record and rerun; completed units are not repeated"),
				logging.String(logging.FieldImpact, "this clip will not be produced"),
			)
			continue
		}
		seen[item.OutputName] = struct{}{}

		pos, ok := index[groupKey]
		if !ok {
			pos = len(batch.Units)
			index[groupKey] = pos
			batch.Units = append(batch.Units, WorkUnit{GroupKey: groupKey})
		}
		batch.Units[pos].SubItems = append(batch.Units[pos].SubItems, item)
	}

	if _, err := dec.Token(); err != nil {
		return nil, services.Wrap(services.ErrManifest, "manifest", "decode", "unterminated manifest object", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrManifest, "manifest", "decode", "trailing data after manifest object", err)
	}

	logger.Debug("manifest loaded",
		logging.Int("records", batch.Records),
		logging.Int("units", len(batch.Units)),
		logging.Int("rejected", len(batch.Rejected)),
	)
	return batch, nil
}

func parseRecord(name string, raw json.RawMessage, seen map[string]struct{}) (SubItem, string, *MalformedRecordError) {
	bad := func(field, reason string) (SubItem, string, *MalformedRecordError) {
		return SubItem{}, "", &MalformedRecordError{OutputName: name, Field: field, Reason: reason}
	}

	outputName, err := textutil.SanitizeOutputName(name)
	if err != nil {
		return bad("output_name", err.Error())
	}
	if _, dup := seen[outputName]; dup {
		return bad("output_name", "duplicate output name")
	}

	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return bad("", "record is not a valid object: "+err.Error())
	}

	groupKey := strings.TrimSpace(rec.GroupKey)
	if groupKey == "" {
		groupKey = strings.TrimSpace(rec.YtbID)
	}
	if groupKey == "" {
		return bad("group_key", "missing")
	}
	if err := textutil.ValidateGroupKey(groupKey); err != nil {
		return bad("group_key", err.Error())
	}

	if rec.Duration == nil || rec.Duration.StartSec == nil || rec.Duration.EndSec == nil {
		return bad("duration", "start_sec and end_sec are required")
	}
	start, end := *rec.Duration.StartSec, *rec.Duration.EndSec
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return bad("duration.start_sec", fmt.Sprintf("%g must be a non-negative number", start))
	}
	if math.IsNaN(end) || math.IsInf(end, 0) || start >= end {
		return bad("duration.end_sec", fmt.Sprintf("%g must be greater than start_sec %g", end, start))
	}

	rawRegion := rec.Region
	if rawRegion == nil {
		rawRegion = rec.BBox
	}
	if rawRegion == nil {
		return bad("region", "missing")
	}
	region, missing := rawRegion.rect()
	if missing != "" {
		return bad("region."+missing, "missing")
	}
	if field, err := region.Validate(); err != nil {
		return bad("region."+field, err.Error())
	}

	return SubItem{
		OutputName: outputName,
		Range:      TimeRange{StartSec: start, EndSec: end},
		Region:     region,
	}, groupKey, nil
}
