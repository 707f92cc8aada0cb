package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Output container formats for rendition transcodes.
const (
	OutputHLS  = "hls"
	OutputDASH = "dash"
)

// Error wraps an encoder invocation failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ffmpeg %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode identifies encoder failures at the pipeline error boundary.
func (e *Error) ErrorCode() string { return "transcode" }

// Representation holds the target encoding parameters for one rendition.
type Representation struct {
	Width            int
	Height           int
	VideoKiloBitRate int
	AudioKiloBitRate int
}

// Subtitle is a prepared WebVTT track muxed into an HLS transcode.
type Subtitle struct {
	Path string
	Name string
	Code string
}

// TranscodeRequest describes one rendition transcode run.
type TranscodeRequest struct {
	InputPath      string
	OutputDir      string
	VideoID        string
	Output         string
	Representation Representation
	Subtitles      []Subtitle
	DurationMillis int64
}

// SpriteRequest describes a sprite sheet generation run.
type SpriteRequest struct {
	InputPath       string
	OutputPattern   string
	IntervalSeconds int
	Width           int
	Height          int
	Tile            string
}

// ProgressFunc receives transcode progress as an integer percentage.
type ProgressFunc func(percent int)

// Client defines the encoding engine behaviour the pipeline depends on.
type Client interface {
	Transcode(ctx context.Context, req TranscodeRequest, progress ProgressFunc) error
	ExtractFrame(ctx context.Context, inputPath, outputPath string, second float64, width, height int) error
	GenerateSprites(ctx context.Context, req SpriteRequest) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = strings.TrimSpace(binary)
		}
	}
}

// WithThreads overrides the encoder thread count.
func WithThreads(threads int) Option {
	return func(c *CLI) {
		if threads > 0 {
			c.threads = threads
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary  string
	threads int
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", threads: 12}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Transcode runs one rendition encode, streaming progress back through the
// callback as integer percentages derived from the source duration.
func (c *CLI) Transcode(ctx context.Context, req TranscodeRequest, progress ProgressFunc) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return &Error{Op: "transcode", Err: errors.New("input path required")}
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return &Error{Op: "transcode", Err: errors.New("output directory required")}
	}
	if req.Output != OutputHLS && req.Output != OutputDASH {
		return &Error{Op: "transcode", Err: fmt.Errorf("unsupported output %q", req.Output)}
	}

	args, err := transcodeArgs(req, c.threads)
	if err != nil {
		return &Error{Op: "transcode", Err: err}
	}

	cmd := commandContext(ctx, c.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Error{Op: "transcode", Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return &Error{Op: "transcode", Err: fmt.Errorf("start encoder: %w", err)}
	}

	scanner := bufio.NewScanner(stdout)
	reporter := newProgressReporter(req.DurationMillis, progress)
	for scanner.Scan() {
		reporter.consume(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return &Error{Op: "transcode", Err: fmt.Errorf("read encoder output: %w", err)}
	}
	if err := cmd.Wait(); err != nil {
		return &Error{Op: "transcode", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
	}
	reporter.finish()
	return nil
}

// ExtractFrame saves a single still frame at the given second offset,
// resized to the requested dimensions.
func (c *CLI) ExtractFrame(ctx context.Context, inputPath, outputPath string, second float64, width, height int) error {
	if strings.TrimSpace(inputPath) == "" {
		return &Error{Op: "frame", Err: errors.New("input path required")}
	}
	if strings.TrimSpace(outputPath) == "" {
		return &Error{Op: "frame", Err: errors.New("output path required")}
	}
	args := frameArgs(inputPath, outputPath, second, width, height)
	return c.run(ctx, "frame", args)
}

// GenerateSprites samples one frame per interval and tiles them into sprite
// sheets written at the output pattern.
func (c *CLI) GenerateSprites(ctx context.Context, req SpriteRequest) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return &Error{Op: "sprites", Err: errors.New("input path required")}
	}
	if strings.TrimSpace(req.OutputPattern) == "" {
		return &Error{Op: "sprites", Err: errors.New("output pattern required")}
	}
	if req.IntervalSeconds <= 0 {
		return &Error{Op: "sprites", Err: errors.New("interval must be positive")}
	}
	args := spriteArgs(req)
	return c.run(ctx, "sprites", args)
}

func (c *CLI) run(ctx context.Context, op string, args []string) error {
	cmd := commandContext(ctx, c.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))}
	}
	return nil
}

var _ Client = (*CLI)(nil)
