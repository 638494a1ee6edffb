package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipmill/internal/manifest"
	"clipmill/internal/services"
)

const sampleManifest = `{
  "clip_b1.mp4": {"ytb_id": "vidB", "duration": {"start_sec": 1, "end_sec": 2}, "bbox": {"top": 0.1, "bottom": 0.5, "left": 0.2, "right": 0.6}},
  "clip_a1.mp4": {"group_key": "vidA", "duration": {"start_sec": 10.5, "end_sec": 12}, "region": {"top": 0.4, "bottom": 0.6, "left": 0.3, "right": 0.5}},
  "clip_b2.mp4": {"ytb_id": "vidB", "duration": {"start_sec": 3, "end_sec": 4.25}, "bbox": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "clip_a2.mp4": {"group_key": "vidA", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0.2, "bottom": 0.3, "left": 0.2, "right": 0.3}}
}`

func TestLoadGroupsInFirstSeenOrder(t *testing.T) {
	batch, err := manifest.Load(strings.NewReader(sampleManifest), manifest.Options{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if batch.Records != 4 || batch.SubItemCount() != 4 {
		t.Fatalf("expected 4 records, got records=%d subitems=%d", batch.Records, batch.SubItemCount())
	}
	if len(batch.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(batch.Units))
	}
	if batch.Units[0].GroupKey != "vidB" || batch.Units[1].GroupKey != "vidA" {
		t.Fatalf("unexpected unit order: %s, %s", batch.Units[0].GroupKey, batch.Units[1].GroupKey)
	}
	b := batch.Units[0].SubItems
	if len(b) != 2 || b[0].OutputName != "clip_b1.mp4" || b[1].OutputName != "clip_b2.mp4" {
		t.Fatalf("unexpected subitems for vidB: %+v", b)
	}
	a := batch.Units[1].SubItems[0]
	if a.Range.StartSec != 10.5 || a.Range.EndSec != 12 || a.Range.Duration() != 1.5 {
		t.Fatalf("unexpected range: %+v", a.Range)
	}
	if a.Region.Top != 0.4 || a.Region.Right != 0.5 {
		t.Fatalf("unexpected region: %+v", a.Region)
	}

	again, err := manifest.Load(strings.NewReader(sampleManifest), manifest.Options{})
	if err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	for i := range batch.Units {
		if again.Units[i].GroupKey != batch.Units[i].GroupKey {
			t.Fatalf("iteration order not deterministic at %d", i)
		}
	}
}

func TestLoadMalformedRecords(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing group", `{"x.mp4": {"duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "group_key"},
		{"missing duration", `{"x.mp4": {"group_key": "g", "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "duration"},
		{"inverted time", `{"x.mp4": {"group_key": "g", "duration": {"start_sec": 5, "end_sec": 5}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "duration.end_sec"},
		{"negative start", `{"x.mp4": {"group_key": "g", "duration": {"start_sec": -1, "end_sec": 5}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "duration.start_sec"},
		{"missing region", `{"x.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}}}`, "region"},
		{"missing edge", `{"x.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0}}}`, "region.right"},
		{"inverted region", `{"x.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0.6, "bottom": 0.4, "left": 0, "right": 1}}}`, "region.top"},
		{"out of range", `{"x.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1.5, "left": 0, "right": 1}}}`, "region.bottom"},
		{"path in name", `{"a/x.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "output_name"},
		{"colon in group", `{"x.mp4": {"group_key": "clip:1", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "group_key"},
		{"question mark in group", `{"x.mp4": {"group_key": "ab?", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "group_key"},
		{"carriage return in group", `{"x.mp4": {"group_key": "ab\rc", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "group_key"},
		{"dot segment group", `{"x.mp4": {"group_key": "..", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}}`, "group_key"},
		{"not an object", `{"x.mp4": 7}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Load(strings.NewReader(tt.body), manifest.Options{Policy: manifest.PolicyReject})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrManifest) {
				t.Fatalf("expected ErrManifest, got %v", err)
			}
			var recErr *manifest.MalformedRecordError
			if !errors.As(err, &recErr) {
				t.Fatalf("expected MalformedRecordError, got %v", err)
			}
			if recErr.Field != tt.field {
				t.Fatalf("Field = %q, want %q", recErr.Field, tt.field)
			}
		})
	}
}

func TestLoadDuplicateOutputName(t *testing.T) {
	body := `{
  "x.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "x.mp4": {"group_key": "h", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}
}`
	batch, err := manifest.Load(strings.NewReader(body), manifest.Options{Policy: manifest.PolicySkip})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(batch.Units) != 1 || batch.Units[0].GroupKey != "g" {
		t.Fatalf("expected only the first record kept, got %+v", batch.Units)
	}
	if len(batch.Rejected) != 1 || batch.Rejected[0].Reason != "duplicate output name" {
		t.Fatalf("expected duplicate to be rejected, got %+v", batch.Rejected)
	}
}

func TestLoadSkipPolicyKeepsValidRecords(t *testing.T) {
	body := `{
  "good.mp4": {"group_key": "g", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "bad.mp4": {"group_key": "g", "duration": {"start_sec": 3, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}
}`
	batch, err := manifest.Load(strings.NewReader(body), manifest.Options{Policy: manifest.PolicySkip})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if batch.SubItemCount() != 1 || batch.Units[0].SubItems[0].OutputName != "good.mp4" {
		t.Fatalf("unexpected units: %+v", batch.Units)
	}
	if len(batch.Rejected) != 1 || batch.Rejected[0].OutputName != "bad.mp4" {
		t.Fatalf("unexpected rejected list: %+v", batch.Rejected)
	}
}

func TestLoadKeepsGroupsOnDistinctSourceFiles(t *testing.T) {
	body := `{
  "a.mp4": {"group_key": "clip-1", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "b.mp4": {"group_key": "clip:1", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "c.mp4": {"group_key": "ab", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "d.mp4": {"group_key": "ab?", "duration": {"start_sec": 0, "end_sec": 1}, "region": {"top": 0, "bottom": 1, "left": 0, "right": 1}}
}`
	batch, err := manifest.Load(strings.NewReader(body), manifest.Options{Policy: manifest.PolicySkip})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(batch.Units) != 2 || batch.Units[0].GroupKey != "clip-1" || batch.Units[1].GroupKey != "ab" {
		t.Fatalf("unexpected units: %+v", batch.Units)
	}
	if len(batch.Rejected) != 2 || batch.Rejected[0].Field != "group_key" || batch.Rejected[1].Field != "group_key" {
		t.Fatalf("expected both rewritable keys rejected, got %+v", batch.Rejected)
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	for _, body := range []string{``, `[]`, `{"x.mp4": {}`, `{} {}`, `not json`} {
		if _, err := manifest.Load(strings.NewReader(body), manifest.Options{}); !errors.Is(err, services.ErrManifest) {
			t.Errorf("body %q: expected ErrManifest, got %v", body, err)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := manifest.LoadFile(filepath.Join(t.TempDir(), "absent.json"), manifest.Options{})
	if !errors.Is(err, services.ErrManifest) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrManifest wrapping ErrNotExist, got %v", err)
	}
	if !services.IsFatal(err) {
		t.Fatal("manifest errors must be fatal")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := manifest.ParsePolicy(""); err != nil || p != manifest.PolicyReject {
		t.Fatalf("default policy = %q, %v", p, err)
	}
	if p, err := manifest.ParsePolicy("SKIP"); err != nil || p != manifest.PolicySkip {
		t.Fatalf("skip policy = %q, %v", p, err)
	}
	if _, err := manifest.ParsePolicy("maybe"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
