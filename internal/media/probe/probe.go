package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Error wraps a probe failure so the pipeline can classify it.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode identifies probe failures at the pipeline error boundary.
func (e *Error) ErrorCode() string { return "probe" }

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index              int    `json:"index"`
	CodecName          string `json:"codec_name"`
	CodecType          string `json:"codec_type"`
	Profile            string `json:"profile"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	RFrameRate         string `json:"r_frame_rate"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	BitRate            string `json:"bit_rate"`
	SampleRate         string `json:"sample_rate"`
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

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, &Error{Path: path, Err: errors.New("empty path")}
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, &Error{Path: path, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))}
	}
	return decode(path, output)
}

func decode(path string, output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, &Error{Path: path, Err: fmt.Errorf("parse output: %w", err)}
	}
	if len(result.Streams) == 0 {
		return Result{}, &Error{Path: path, Err: errors.New("no streams found")}
	}
	return result, nil
}

// DurationMillis returns the container duration in milliseconds, or 0 when
// unavailable.
func (r Result) DurationMillis() int64 {
	seconds := parseFloat(r.Format.Duration)
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

// ContainerFormat returns the primary container name.
func (r Result) ContainerFormat() string {
	name := strings.TrimSpace(r.Format.FormatName)
	if idx := strings.IndexByte(name, ','); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// SizeBytes returns the reported container size, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// VideoStreams returns the container's video streams in declaration order.
func (r Result) VideoStreams() []Stream {
	return r.streamsOfType("video")
}

// AudioStreams returns the container's audio streams in declaration order.
func (r Result) AudioStreams() []Stream {
	return r.streamsOfType("audio")
}

func (r Result) streamsOfType(kind string) []Stream {
	var streams []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			streams = append(streams, stream)
		}
	}
	return streams
}

// AspectRatio returns the stream's display aspect ratio, deriving one from
// the dimensions when ffprobe does not report it.
func (s Stream) AspectRatio() string {
	if ratio := strings.TrimSpace(s.DisplayAspectRatio); ratio != "" {
		return ratio
	}
	if s.Width <= 0 || s.Height <= 0 {
		return ""
	}
	div := gcd(s.Width, s.Height)
	return fmt.Sprintf("%d:%d", s.Width/div, s.Height/div)
}

// FrameRate returns the stream frame rate as a stringified number, e.g.
// "29.97" for 30000/1001.
func (s Stream) FrameRate() string {
	rate := parseRatio(s.RFrameRate)
	if rate <= 0 {
		return ""
	}
	return strconv.FormatFloat(math.Round(rate*1000)/1000, 'f', -1, 64)
}

// FrameRateMode reports CFR when the average and real frame rates agree,
// VFR otherwise.
func (s Stream) FrameRateMode() string {
	if s.RFrameRate == "" || s.AvgFrameRate == "" {
		return ""
	}
	if s.RFrameRate == s.AvgFrameRate {
		return "Constant"
	}
	return "Variable"
}

// BitRateValue returns the stream bitrate in bits per second, or 0.
func (s Stream) BitRateValue() int {
	rate := parseFloat(s.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int(rate)
}

func parseRatio(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parts := strings.SplitN(value, "/", 2)
	num := parseFloat(parts[0])
	if math.IsNaN(num) {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den := parseFloat(parts[1])
	if math.IsNaN(den) || den == 0 {
		return 0
	}
	return num / den
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

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
