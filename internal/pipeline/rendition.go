package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"prism/internal/catalog"
	"prism/internal/ffmpeg"
	"prism/internal/logging"
	"prism/internal/manifest"
	"prism/internal/subtitles"
	"prism/internal/workspace"
)

// renditionName encodes the profile into the public rendition label, e.g.
// 1024X576@2666 for a 2538k video / 128k audio profile.
func renditionName(profile catalog.Profile) string {
	return fmt.Sprintf("%dX%d@%d", profile.Width, profile.Height, profile.VideoBitRate+profile.AudioBitRate)
}

func (c *Controller) processRendition(ctx context.Context, job Job, video *catalog.Video, bucket *catalog.Bucket, file *catalog.File, inPath string, ws *workspace.Workspace, logger *slog.Logger) error {
	tracks, claimed, err := c.prepareSubtitles(ctx, video, ws, logger)
	if err != nil {
		return err
	}

	rendition := &catalog.Rendition{
		VideoID:      video.ID,
		ProfileID:    job.Profile.ID,
		Name:         renditionName(job.Profile),
		Status:       catalog.StatusStarted,
		StartedAt:    time.Now().UTC(),
		Output:       job.Output,
		Width:        job.Profile.Width,
		Height:       job.Profile.Height,
		VideoBitRate: job.Profile.VideoBitRate,
		AudioBitRate: job.Profile.AudioBitRate,
	}
	if err := c.store.CreateRendition(ctx, rendition); err != nil {
		return err
	}
	c.publish(ctx, rendition, bucket, file, "create", logger)

	logger = logger.With(logging.String(logging.FieldRenditionID, rendition.ID))
	logger.Info("rendition started",
		logging.String("name", rendition.Name),
		logging.String(logging.FieldOutput, job.Output),
	)

	// From here every failure is terminal rendition state, not a job error.
	if err := c.produceRendition(ctx, job, video, bucket, file, rendition, tracks, claimed, inPath, ws, logger); err != nil {
		c.failRendition(ctx, rendition, bucket, file, err, logger)
	}
	return nil
}

// failRendition records a stage failure onto the rendition exactly once.
func (c *Controller) failRendition(ctx context.Context, rendition *catalog.Rendition, bucket *catalog.Bucket, file *catalog.File, cause error, logger *slog.Logger) {
	metadata, err := json.Marshal(map[string]string{
		"code":    errorCode(cause),
		"message": truncateMessage(cause.Error()),
	})
	if err == nil {
		rendition.Metadata = string(metadata)
	}
	rendition.Status = catalog.StatusError
	if err := c.store.UpdateRendition(ctx, rendition); err != nil {
		logger.Error("failed to record rendition error", logging.Error(err))
	}
	c.publish(ctx, rendition, bucket, file, "update", logger)
	logger.Error("rendition failed",
		logging.String("error_code", errorCode(cause)),
		logging.Error(cause),
	)
}

func (c *Controller) produceRendition(ctx context.Context, job Job, video *catalog.Video, bucket *catalog.Bucket, file *catalog.File, rendition *catalog.Rendition, tracks []subtitles.Track, claimed []*catalog.Subtitle, inPath string, ws *workspace.Workspace, logger *slog.Logger) error {
	renditionRootPath := c.videos.Path(video.ID) + "/"
	renditionPath := renditionRootPath + rendition.Name + "-" + rendition.ID + "/"

	encodeSubs := make([]ffmpeg.Subtitle, 0, len(tracks))
	for _, track := range tracks {
		encodeSubs = append(encodeSubs, ffmpeg.Subtitle{
			Path: track.Path,
			Name: track.Name,
			Code: track.Code,
		})
	}

	if err := c.encoder.Transcode(ctx, ffmpeg.TranscodeRequest{
		InputPath: inPath,
		OutputDir: ws.OutDir,
		VideoID:   video.ID,
		Output:    job.Output,
		Representation: ffmpeg.Representation{
			Width:            job.Profile.Width,
			Height:           job.Profile.Height,
			VideoKiloBitRate: job.Profile.VideoBitRate,
			AudioKiloBitRate: job.Profile.AudioBitRate,
		},
		Subtitles:      encodeSubs,
		DurationMillis: video.Duration,
	}, func(percent int) {
		// Progress is only observable at multiples of 3 to bound the
		// update volume.
		if percent%3 != 0 {
			return
		}
		rendition.Progress = percent
		if err := c.store.UpdateRendition(ctx, rendition); err != nil {
			logger.Warn("failed to persist progress", logging.Error(err))
			return
		}
		c.publish(ctx, rendition, bucket, file, "update", logger)
	}); err != nil {
		return err
	}

	if err := c.recordSegments(ctx, job.Output, video, rendition, renditionPath, ws); err != nil {
		return err
	}

	now := time.Now().UTC()
	rendition.Status = catalog.StatusEnded
	rendition.EndedAt = &now
	if err := c.store.UpdateRendition(ctx, rendition); err != nil {
		return err
	}
	c.publish(ctx, rendition, bucket, file, "update", logger)
	logger.Info("rendition transcode complete")

	if err := c.finishSubtitles(ctx, job.Output, video, claimed, renditionRootPath, ws); err != nil {
		return err
	}

	if err := c.uploadArtifacts(ctx, rendition, bucket, file, renditionRootPath, renditionPath, ws, logger); err != nil {
		return err
	}

	rendition.Status = catalog.StatusReady
	if err := c.store.UpdateRendition(ctx, rendition); err != nil {
		return err
	}
	c.publish(ctx, rendition, bucket, file, "update", logger)
	logger.Info("rendition ready", logging.String("path", rendition.Path))
	return nil
}

// prepareSubtitles claims the video's unprocessed subtitle tracks, fetches
// them, and converts each to WebVTT in the workspace.
func (c *Controller) prepareSubtitles(ctx context.Context, video *catalog.Video, ws *workspace.Workspace, logger *slog.Logger) ([]subtitles.Track, []*catalog.Subtitle, error) {
	claimed, err := c.store.ClaimSubtitles(ctx, video.ID)
	if err != nil {
		return nil, nil, err
	}

	tracks := make([]subtitles.Track, 0, len(claimed))
	for _, subtitle := range claimed {
		file, err := c.store.GetFile(ctx, subtitle.FileID)
		if err != nil {
			return nil, nil, err
		}
		fetched, err := c.retriever.Retrieve(file, ws)
		if err != nil {
			return nil, nil, err
		}
		vttPath := ws.InPath(subtitle.ID + ".vtt")
		if err := subtitles.Prepare(fetched, vttPath); err != nil {
			return nil, nil, err
		}
		name := subtitle.Name
		if name == "" {
			name = subtitles.DisplayName(subtitle.Code, subtitle.Code)
		}
		tracks = append(tracks, subtitles.Track{
			ID:   subtitle.ID,
			Name: name,
			Code: subtitle.Code,
			Path: vttPath,
		})
		logger.Info("subtitle prepared",
			logging.String("subtitle_id", subtitle.ID),
			logging.String("language", subtitle.Code),
		)
	}
	return tracks, claimed, nil
}

// recordSegments parses the produced manifests and persists the segment
// structure. Empty manifests skip persistence rather than failing.
func (c *Controller) recordSegments(ctx context.Context, output string, video *catalog.Video, rendition *catalog.Rendition, renditionPath string, ws *workspace.Workspace) error {
	if output == catalog.OutputHLS {
		variants, err := manifest.ParseMasterPlaylist(ws.OutPath("master.m3u8"), video.ID)
		if err != nil {
			return err
		}
		for _, variant := range variants {
			playlist, err := manifest.ParseMediaPlaylist(ws.OutPath(variant.Path))
			if err != nil {
				return err
			}
			streamID, _ := strconv.Atoi(variant.ID)
			for _, segment := range playlist.Segments {
				duration, _ := strconv.ParseFloat(segment.Duration, 64)
				if err := c.store.CreateSegment(ctx, &catalog.Segment{
					RenditionID: rendition.ID,
					StreamID:    streamID,
					FileName:    segment.FileName,
					Path:        renditionPath,
					Duration:    duration,
				}); err != nil {
					return err
				}
			}
			if target, err := strconv.Atoi(strings.TrimSpace(playlist.TargetDuration)); err == nil {
				rendition.TargetDuration = target
			}
		}
		if len(variants) > 0 {
			metadata, err := json.Marshal(map[string]any{"hls": variants})
			if err != nil {
				return err
			}
			rendition.Metadata = string(metadata)
		}
		return nil
	}

	mpd, err := manifest.ParseMPD(ws.OutPath(video.ID + ".mpd"))
	if err != nil {
		return err
	}
	for _, segment := range mpd.Segments {
		if err := c.store.CreateSegment(ctx, &catalog.Segment{
			RenditionID: rendition.ID,
			StreamID:    segment.StreamID,
			FileName:    segment.FileName,
			Path:        renditionPath,
			IsInit:      segment.IsInit,
		}); err != nil {
			return err
		}
	}
	if mpd.Metadata != "" {
		metadata, err := json.Marshal(map[string]string{"mpd": mpd.Metadata})
		if err != nil {
			return err
		}
		rendition.Metadata = string(metadata)
	}
	return nil
}

// finishSubtitles records per-subtitle segment lists (HLS) or stages the
// converted track for upload (DASH), then marks each track ready.
func (c *Controller) finishSubtitles(ctx context.Context, output string, video *catalog.Video, claimed []*catalog.Subtitle, renditionRootPath string, ws *workspace.Workspace) error {
	for _, subtitle := range claimed {
		if output == catalog.OutputHLS {
			playlist, err := manifest.ParseMediaPlaylist(ws.OutPath(video.ID + "_subtitles_" + subtitle.Code + ".m3u8"))
			if err != nil {
				return err
			}
			for _, segment := range playlist.Segments {
				duration, _ := strconv.ParseFloat(segment.Duration, 64)
				if err := c.store.CreateSubtitleSegment(ctx, &catalog.SubtitleSegment{
					SubtitleID: subtitle.ID,
					FileName:   segment.FileName,
					Path:       renditionRootPath + "subtitles/",
					Duration:   duration,
				}); err != nil {
					return err
				}
			}
			if target, err := strconv.Atoi(strings.TrimSpace(playlist.TargetDuration)); err == nil {
				subtitle.TargetDuration = target
			}
		} else {
			// DASH carries no subtitle playlists; ship the converted
			// track itself.
			data, err := os.ReadFile(ws.InPath(subtitle.ID + ".vtt"))
			if err != nil {
				return err
			}
			if err := os.WriteFile(ws.OutPath(subtitle.ID+".vtt"), data, 0o644); err != nil {
				return err
			}
		}

		subtitle.Status = catalog.StatusReady
		subtitle.Path = renditionRootPath + "subtitles/"
		if err := c.store.UpdateSubtitle(ctx, subtitle); err != nil {
			return err
		}
	}
	return nil
}

// uploadArtifacts ships every produced file to the video device. Subtitle
// artifacts land under the shared subtitles/ prefix; everything else under
// the rendition's own prefix. The first successful write flips the
// rendition to UPLOADING with full progress.
func (c *Controller) uploadArtifacts(ctx context.Context, rendition *catalog.Rendition, bucket *catalog.Bucket, file *catalog.File, renditionRootPath, renditionPath string, ws *workspace.Workspace, logger *slog.Logger) error {
	entries, err := os.ReadDir(ws.OutDir)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(ws.OutDir, name))
		if err != nil {
			return err
		}
		destination := renditionPath
		if strings.Contains(name, "_subtitles_") || strings.Contains(name, ".vtt") {
			destination = renditionRootPath + "subtitles/"
		}
		if err := c.videos.Write(destination+name, data, mimeForFile(name)); err != nil {
			return err
		}
		logger.Info("uploaded artifact", logging.String("file", name))

		if i == 0 {
			rendition.Progress = 100
			rendition.Status = catalog.StatusUploading
			rendition.Path = renditionPath
			if err := c.store.UpdateRendition(ctx, rendition); err != nil {
				return err
			}
			c.publish(ctx, rendition, bucket, file, "update", logger)
		}
	}
	return nil
}

func mimeForFile(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return "application/x-mpegurl"
	case ".mpd":
		return "application/dash+xml"
	case ".ts":
		return "video/mp2t"
	case ".m4s":
		return "video/iso.segment"
	case ".vtt":
		return "text/vtt"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
