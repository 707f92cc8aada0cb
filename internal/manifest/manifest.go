package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ParseError wraps a manifest read or structure failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrorCode identifies manifest failures at the pipeline error boundary.
func (e *ParseError) ErrorCode() string { return "manifest" }

// Segment is one media chunk referenced by a manifest.
type Segment struct {
	StreamID int
	FileName string
	IsInit   bool
	Duration string // raw #EXTINF value, HLS only
}

// MPD is the parsed structure of a DASH manifest: its segment descriptors
// plus every other line joined into an opaque metadata blob.
type MPD struct {
	Metadata string
	Segments []Segment
}

// MediaPlaylist is the parsed structure of an HLS media or subtitle
// playlist.
type MediaPlaylist struct {
	TargetDuration string
	Segments       []Segment
}

// Variant is one stream discovered in an HLS master playlist.
type Variant struct {
	ID         string
	Path       string
	Type       string // audio or video
	Language   string
	Resolution string
	Bandwidth  string
	Codecs     string
}

// ParseMPD scans a DASH manifest. Lines mentioning an AdaptationSet bump
// the stream index; SegmentURL and Initialization lines become segment
// descriptors; everything else accumulates into the metadata blob.
func ParseMPD(path string) (MPD, error) {
	lines, err := readLines(path)
	if err != nil {
		return MPD{}, err
	}

	var mpd MPD
	var metadata strings.Builder
	streamID := -1
	for _, line := range lines {
		if strings.Contains(line, "<AdaptationSet") {
			streamID++
		}
		if !strings.Contains(line, "SegmentURL") && !strings.Contains(line, "Initialization") {
			metadata.WriteString(line)
			metadata.WriteByte('\n')
			continue
		}
		fileName := line
		for _, marker := range []string{`<SegmentURL media="`, `<Initialization sourceURL="`, `"/>`, `" />`} {
			fileName = strings.ReplaceAll(fileName, marker, "")
		}
		mpd.Segments = append(mpd.Segments, Segment{
			StreamID: streamID,
			FileName: strings.TrimSpace(fileName),
			IsInit:   strings.Contains(line, "Initialization"),
		})
	}
	mpd.Metadata = metadata.String()
	return mpd, nil
}

// ParseMediaPlaylist scans an HLS media or subtitle playlist, pairing each
// #EXTINF duration with the next segment file line. A duration is consumed
// exactly once so an unmatched #EXTINF cannot leak into a later segment.
func ParseMediaPlaylist(path string) (MediaPlaylist, error) {
	lines, err := readLines(path)
	if err != nil {
		return MediaPlaylist{}, err
	}

	var playlist MediaPlaylist
	var pending string
	for _, line := range lines {
		if strings.Contains(line, "#EXT-X-TARGETDURATION") {
			playlist.TargetDuration = strings.ReplaceAll(line, "#EXT-X-TARGETDURATION:", "")
			continue
		}
		if strings.Contains(line, "#EXTINF") {
			pending = strings.ReplaceAll(line, "#EXTINF:", "")
			continue
		}
		if strings.Contains(line, ".ts") || strings.Contains(line, ".vtt") {
			if pending == "" {
				continue
			}
			playlist.Segments = append(playlist.Segments, Segment{FileName: line, Duration: pending})
			pending = ""
		}
	}
	return playlist, nil
}

type variantAttrs struct {
	language   string
	bandwidth  string
	resolution string
	codecs     string
	typeAudio  bool
}

func (a variantAttrs) empty() bool {
	return a.language == "" && a.bandwidth == "" && a.resolution == "" && a.codecs == "" && !a.typeAudio
}

// ParseMasterPlaylist scans an HLS master playlist and returns the variant
// streams it references. Variant paths are located by the video id and the
// m3u8 suffix; the numeric stream id comes from the <videoId>_<n>_ filename
// pattern. Attribute lines without a playlist reference (#EXT-X-STREAM-INF)
// apply to the next line that carries one, and are consumed once.
func ParseMasterPlaylist(path, videoID string) ([]Variant, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var variants []Variant
	var pending variantAttrs
	for _, line := range lines {
		line = strings.ReplaceAll(line, `"`, "")
		attrs := parseAttrs(line)

		end := strings.Index(line, "m3u8")
		if end < 0 {
			if !attrs.empty() {
				pending = attrs
			}
			continue
		}
		start := strings.Index(line, videoID)
		if start < 0 || start > end {
			continue
		}
		variantPath := line[start : end+len("m3u8")]

		if attrs.empty() {
			attrs = pending
		}
		pending = variantAttrs{}

		variant := Variant{Path: variantPath}
		if parts := strings.Split(variantPath, "_"); len(parts) > 1 {
			variant.ID = parts[1]
		}
		if attrs.typeAudio {
			variant.Type = "audio"
			variant.Language = attrs.language
		} else {
			variant.Type = "video"
			variant.Resolution = attrs.resolution
			variant.Bandwidth = attrs.bandwidth
			variant.Codecs = attrs.codecs
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

func parseAttrs(line string) variantAttrs {
	var attrs variantAttrs
	attrs.typeAudio = strings.Contains(line, "TYPE=AUDIO")
	attributes := strings.Split(line, ",")
	for i, attribute := range attributes {
		parts := strings.SplitN(attribute, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch {
		case strings.Contains(parts[0], "LANGUAGE"):
			attrs.language = parts[1]
		case strings.Contains(parts[0], "BANDWIDTH"):
			attrs.bandwidth = parts[1]
		case strings.Contains(parts[0], "RESOLUTION"):
			attrs.resolution = parts[1]
		case strings.Contains(parts[0], "CODECS"):
			// CODECS values carry a comma, so the value spans two split
			// tokens.
			attrs.codecs = parts[1]
			if i+1 < len(attributes) {
				attrs.codecs += "," + attributes[i+1]
			}
		}
	}
	return attrs
}

// readLines returns the file's lines with commas and line endings stripped,
// matching the tokens the scanners key on.
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, strings.Trim(scanner.Text(), ",\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return lines, nil
}
