package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"prism/internal/catalog"
	"prism/internal/ffmpeg"
	"prism/internal/logging"
	"prism/internal/timeline"
	"prism/internal/workspace"
)

const previewName = "preview.jpg"

// processPreview extracts a still frame at the requested second, uploads
// it, and upserts the preview record keyed by (video, type, name).
func (c *Controller) processPreview(ctx context.Context, job Job, video *catalog.Video, inPath string, ws *workspace.Workspace, logger *slog.Logger) error {
	framePath := ws.OutPath(previewName)
	if err := c.encoder.ExtractFrame(ctx, inPath, framePath, job.Second, video.Width, video.Height); err != nil {
		return err
	}

	data, err := os.ReadFile(framePath)
	if err != nil || len(data) == 0 {
		// No frame at the requested offset is a no-op, not a failure.
		logger.Warn("no preview frame produced", logging.Float64("second", job.Second))
		return nil
	}

	path := c.videos.Path(video.ID) + "/preview/"
	if err := c.videos.Write(path+previewName, data, "image/jpeg"); err != nil {
		return err
	}
	logger.Info("preview uploaded", logging.Float64("second", job.Second))

	existing, err := c.store.FindPreview(ctx, video.ID, catalog.PreviewTypePreview, previewName)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		preview := &catalog.Preview{
			VideoID: video.ID,
			Type:    catalog.PreviewTypePreview,
			Name:    previewName,
			Path:    path,
			Second:  int(job.Second),
		}
		if err := c.store.CreatePreview(ctx, preview); err != nil {
			return err
		}
		return c.store.PatchVideo(ctx, video.ID, catalog.VideoPatch{PreviewID: &preview.ID})
	case err != nil:
		return err
	default:
		existing.Second = int(job.Second)
		if err := c.store.UpdatePreview(ctx, existing); err != nil {
			return err
		}
		// A replaced frame may be cached downstream under the old bytes.
		if err := c.evictor.Evict(ctx, "preview/"+existing.ID); err != nil {
			logger.Warn("preview cache eviction failed", logging.Error(err))
		}
		return nil
	}
}

// processTimeline samples the video into sprite sheets, uploads them with
// their WebVTT cue document, and records one sprite preview per sheet.
func (c *Controller) processTimeline(ctx context.Context, video *catalog.Video, inPath string, ws *workspace.Workspace, logger *slog.Logger) error {
	layout := timeline.Plan(video.Duration, video.Width, video.Height)
	if layout.Sheets == 0 {
		logger.Warn("timeline skipped", logging.Int64("duration_ms", video.Duration))
		return nil
	}

	if err := c.encoder.GenerateSprites(ctx, ffmpeg.SpriteRequest{
		InputPath:       inPath,
		OutputPattern:   ws.OutPath("sprite%d.jpg"),
		IntervalSeconds: layout.IntervalSeconds,
		Width:           layout.TileWidth,
		Height:          layout.TileHeight,
		Tile:            layout.Tile(),
	}); err != nil {
		return err
	}

	path := c.videos.Path(video.ID) + "/timeline/"
	sheetIDs := make(map[int]string, layout.Sheets)
	for sheet := 1; sheet <= layout.Sheets; sheet++ {
		name := timeline.SheetName(sheet)
		record, err := c.store.FindPreview(ctx, video.ID, catalog.PreviewTypeSprite, name)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			record = &catalog.Preview{
				VideoID: video.ID,
				Type:    catalog.PreviewTypeSprite,
				Name:    name,
				Path:    path,
			}
			if err := c.store.CreatePreview(ctx, record); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		sheetIDs[sheet] = record.ID
	}

	cues := layout.BuildCues(func(sheet int) string {
		return fmt.Sprintf("%sv1/videos/%s/preview/%s/", c.cfg.PublicHost, video.ID, sheetIDs[sheet])
	})
	if err := c.videos.Write(path+"timeline.vtt", []byte(cues), "text/vtt"); err != nil {
		return err
	}
	logger.Info("timeline cue sheet uploaded",
		logging.Int("sheets", layout.Sheets),
		logging.Int("interval_seconds", layout.IntervalSeconds),
	)

	for sheet := 1; sheet <= layout.Sheets; sheet++ {
		name := timeline.SheetName(sheet)
		data, err := os.ReadFile(filepath.Join(ws.OutDir, name))
		if err != nil {
			// The encoder may emit fewer sheets than planned near the
			// end of short sources.
			logger.Warn("sprite sheet missing", logging.String("file", name))
			continue
		}
		if err := c.videos.Write(path+name, data, "image/jpeg"); err != nil {
			return err
		}
		logger.Info("uploaded artifact", logging.String("file", name))
	}
	return nil
}
