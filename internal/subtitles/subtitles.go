package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"prism/internal/fileutil"
)

// Track is a prepared WebVTT subtitle ready to attach to a transcode.
type Track struct {
	ID   string
	Name string
	Code string
	Path string
}

// Prepare converts the fetched subtitle at srcPath into a WebVTT file at
// dstPath. SubRip sources are converted; WebVTT sources are copied as-is.
func Prepare(srcPath, dstPath string) error {
	ext := strings.ToLower(filepath.Ext(srcPath))
	switch ext {
	case ".srt":
		return ConvertSRT(srcPath, dstPath)
	case ".vtt":
		return fileutil.CopyFile(srcPath, dstPath)
	default:
		return fmt.Errorf("unsupported subtitle format %q", ext)
	}
}

// ConvertSRT rewrites a SubRip file as WebVTT: cue index lines are dropped
// and timestamp milliseconds switch from comma to period separators.
func ConvertSRT(srtPath, vttPath string) error {
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return fmt.Errorf("read subtitle: %w", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	var out strings.Builder
	out.WriteString("WEBVTT\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 {
			continue
		}
		if isCueIndex(lines[0]) {
			lines = lines[1:]
		}
		if len(lines) == 0 || !strings.Contains(lines[0], "-->") {
			continue
		}
		out.WriteByte('\n')
		out.WriteString(convertTimestampLine(lines[0]))
		out.WriteByte('\n')
		for _, text := range lines[1:] {
			out.WriteString(text)
			out.WriteByte('\n')
		}
	}

	if err := os.WriteFile(vttPath, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write subtitle: %w", err)
	}
	return nil
}

func isCueIndex(line string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(line))
	return err == nil
}

func convertTimestampLine(line string) string {
	start, end, ok := strings.Cut(line, "-->")
	if !ok {
		return line
	}
	return strings.ReplaceAll(strings.TrimSpace(start), ",", ".") +
		" --> " +
		strings.ReplaceAll(strings.TrimSpace(end), ",", ".")
}

// DisplayName resolves a language code to its English display name,
// falling back to the provided name when the code does not parse.
func DisplayName(code, fallback string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return fallback
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return fallback
}
