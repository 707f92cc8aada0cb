package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// segmentSeconds is the fixed HLS/DASH segment duration.
	segmentSeconds = 8

	// scaleFilter forces an even output height while preserving the
	// source aspect ratio.
	scaleFilter = "scale=iw:-2:force_original_aspect_ratio=increase,setsar=1:1"

	// keyFrameExpr forces a keyframe at least every two seconds so
	// segment boundaries stay stable across representations.
	keyFrameExpr = "expr:gte(t,n_forced*2)"
)

func transcodeArgs(req TranscodeRequest, threads int) ([]string, error) {
	rep := req.Representation
	if rep.Width <= 0 || rep.Height <= 0 {
		return nil, fmt.Errorf("invalid representation size %dx%d", rep.Width, rep.Height)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", req.InputPath}
	for _, subtitle := range req.Subtitles {
		args = append(args, "-i", subtitle.Path)
	}
	args = append(args, "-c:v", "libx264", "-c:a", "aac")

	args = append(args, "-dn")
	if len(req.Subtitles) == 0 {
		args = append(args, "-sn")
	} else {
		args = append(args, "-c:s", "webvtt")
	}
	args = append(args,
		"-vf", scaleFilter,
		"-bf", "3",
		"-force_key_frames", keyFrameExpr,
	)

	if req.Output == OutputDASH {
		args = append(args,
			"-map", "0",
			"-s:v:0", fmt.Sprintf("%dx%d", rep.Width, rep.Height),
			"-b:v:0", fmt.Sprintf("%dk", rep.VideoKiloBitRate),
			"-b:a:0", fmt.Sprintf("%dk", rep.AudioKiloBitRate),
			"-strict", "-2",
			"-use_timeline", "0",
			"-use_template", "0",
			"-seg_duration", strconv.Itoa(segmentSeconds),
			"-hls_playlist", "0",
			"-f", "dash",
		)
		args = appendCommonTail(args, threads)
		return append(args, filepath.Join(req.OutputDir, req.VideoID+".mpd")), nil
	}

	args = append(args, "-map", "0:v:0", "-map", "0:a:0")
	for i := range req.Subtitles {
		args = append(args, "-map", fmt.Sprintf("%d:s:0", i+1))
	}
	for i, subtitle := range req.Subtitles {
		args = append(args,
			fmt.Sprintf("-metadata:s:s:%d", i), "language="+subtitle.Code,
			fmt.Sprintf("-metadata:s:s:%d", i), "title="+subtitle.Name,
			fmt.Sprintf("-disposition:s:s:%d", i), "default",
		)
	}
	args = append(args,
		"-s:v:0", fmt.Sprintf("%dx%d", rep.Width, rep.Height),
		"-b:v:0", fmt.Sprintf("%dk", rep.VideoKiloBitRate),
		"-b:a:0", fmt.Sprintf("%dk", rep.AudioKiloBitRate),
		"-strict", "-2",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(req.OutputDir, req.VideoID+"_%v_"+variantLabel(rep)+"_%05d.ts"),
		"-master_pl_name", "master.m3u8",
		"-var_stream_map", varStreamMap(rep, req.Subtitles),
		"-f", "hls",
	)
	args = appendCommonTail(args, threads)
	return append(args, filepath.Join(req.OutputDir, req.VideoID+"_%v.m3u8")), nil
}

func appendCommonTail(args []string, threads int) []string {
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	return append(args, "-progress", "pipe:1", "-nostats")
}

// varStreamMap names every variant so its playlist file carries the
// <videoId>_<streamId>_<label> pattern the manifest scanner keys on;
// subtitle variants use the subtitles_<code> label.
func varStreamMap(rep Representation, subtitles []Subtitle) string {
	entries := []string{"v:0,a:0,name:0_" + variantLabel(rep)}
	for i, subtitle := range subtitles {
		entries = append(entries, fmt.Sprintf("s:%d,name:subtitles_%s,sgroup:subs", i, subtitle.Code))
	}
	return strings.Join(entries, " ")
}

func variantLabel(rep Representation) string {
	return strconv.Itoa(rep.Height) + "p"
}

func frameArgs(inputPath, outputPath string, second float64, width, height int) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(second, 'f', -1, 64),
		"-i", inputPath,
	}
	if width > 0 && height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", width, height))
	}
	return append(args, "-frames:v", "1", "-q:v", "2", outputPath)
}

func spriteArgs(req SpriteRequest) []string {
	tile := strings.TrimSpace(req.Tile)
	if tile == "" {
		tile = "5x5"
	}
	filter := fmt.Sprintf(
		`select=isnan(prev_selected_t)+gte(t-prev_selected_t\,%d),scale=%d:%d,tile=%s`,
		req.IntervalSeconds, req.Width, req.Height, tile,
	)
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", req.InputPath,
		"-vsync", "vfr",
		"-vf", filter,
		"-qscale:v", "3",
		req.OutputPattern,
	}
}
