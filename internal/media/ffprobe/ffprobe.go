package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"clipmill/internal/command"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Duration     string            `json:"duration"`
	BitRate      string            `json:"bit_rate"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Tags         map[string]string `json:"tags"`
	SideDataList []SideData        `json:"side_data_list"`
}

// SideData carries per-stream side data; only display rotation is decoded.
type SideData struct {
	Rotation float64 `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Prober runs ffprobe through a command.Executor.
type Prober struct {
	binary string
	exec   command.Executor
}

// Option configures the prober.
type Option func(*Prober)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(p *Prober) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// New constructs a Prober for the given ffprobe binary.
func New(binary string, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &Prober{binary: binary, exec: command.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var out strings.Builder
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "-i", path}
	err := p.exec.Run(ctx, p.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(out.String()), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Dimensions probes path and returns the display width and height of its
// primary video stream.
func (p *Prober) Dimensions(ctx context.Context, path string) (int, int, error) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return result.VideoDimensions()
}

// VideoDimensions returns the display size of the first video stream,
// swapping width and height for sources rotated by a quarter turn.
func (r Result) VideoDimensions() (int, int, error) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			return 0, 0, fmt.Errorf("video stream %d reports no dimensions", stream.Index)
		}
		if stream.quarterTurn() {
			return stream.Height, stream.Width, nil
		}
		return stream.Width, stream.Height, nil
	}
	return 0, 0, errors.New("no video stream")
}

func (s Stream) quarterTurn() bool {
	rotation := 0.0
	for _, side := range s.SideDataList {
		if side.Rotation != 0 {
			rotation = side.Rotation
			break
		}
	}
	if rotation == 0 {
		if tag, ok := s.Tags["rotate"]; ok {
			rotation = parseFloat(tag)
		}
	}
	if math.IsNaN(rotation) {
		return false
	}
	turns := int(math.Round(math.Abs(rotation)/90)) % 2
	return turns == 1
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
