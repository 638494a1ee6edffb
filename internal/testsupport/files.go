package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Clip describes one manifest record in its on-disk shape.
type Clip struct {
	GroupKey string
	StartSec float64
	EndSec   float64
	// Region is top, bottom, left, right as frame fractions.
	Region [4]float64
}

// ManifestJSON encodes clips keyed by output name as a manifest document.
func ManifestJSON(t testing.TB, clips map[string]Clip) string {
	t.Helper()

	doc := make(map[string]any, len(clips))
	for name, clip := range clips {
		doc[name] = map[string]any{
			"group_key": clip.GroupKey,
			"duration":  map[string]float64{"start_sec": clip.StartSec, "end_sec": clip.EndSec},
			"region": map[string]float64{
				"top":    clip.Region[0],
				"bottom": clip.Region[1],
				"left":   clip.Region[2],
				"right":  clip.Region[3],
			},
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	return string(data)
}
