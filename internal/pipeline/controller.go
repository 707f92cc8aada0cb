package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"prism/internal/catalog"
	"prism/internal/config"
	"prism/internal/ffmpeg"
	"prism/internal/logging"
	"prism/internal/media/probe"
	"prism/internal/realtime"
	"prism/internal/retriever"
	"prism/internal/storage"
	"prism/internal/workspace"
)

// Job actions. Anything other than preview or timeline produces a
// rendition in the job's output format.
const (
	ActionPreview  = "preview"
	ActionTimeline = "timeline"
)

// Job is one unit of work handed to the controller.
type Job struct {
	VideoID   string          `json:"videoId"`
	ProjectID string          `json:"projectId"`
	Action    string          `json:"action"`
	Output    string          `json:"output"`
	Second    float64         `json:"second"`
	Profile   catalog.Profile `json:"profile"`
}

// CacheEvictor invalidates externally cached artifacts when their source
// records change. Eviction is dispatched, never owned, by the pipeline.
type CacheEvictor interface {
	Evict(ctx context.Context, resource string) error
}

// NoopEvictor ignores eviction requests.
type NoopEvictor struct{}

// Evict implements CacheEvictor.
func (NoopEvictor) Evict(context.Context, string) error { return nil }

// Controller owns the per-job state machine.
type Controller struct {
	cfg       *config.Config
	store     *catalog.Store
	retriever *retriever.Retriever
	encoder   ffmpeg.Client
	publisher realtime.Publisher
	videos    storage.Device
	evictor   CacheEvictor
	logger    *slog.Logger
}

// New wires a controller from its collaborators. A nil evictor or logger
// is replaced with a noop.
func New(cfg *config.Config, store *catalog.Store, ret *retriever.Retriever, encoder ffmpeg.Client, publisher realtime.Publisher, videos storage.Device, evictor CacheEvictor, logger *slog.Logger) *Controller {
	if evictor == nil {
		evictor = NoopEvictor{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if publisher == nil {
		publisher = realtime.Noop{}
	}
	return &Controller{
		cfg:       cfg,
		store:     store,
		retriever: ret,
		encoder:   encoder,
		publisher: publisher,
		videos:    videos,
		evictor:   evictor,
		logger:    logger,
	}
}

// Process runs one job to completion. The workspace is removed on every
// exit path.
func (c *Controller) Process(ctx context.Context, job Job) error {
	video, err := c.store.GetVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("load video %s: %w", job.VideoID, err)
	}
	bucket, err := c.store.GetBucket(ctx, video.BucketID)
	if err != nil {
		return fmt.Errorf("load bucket %s: %w", video.BucketID, err)
	}
	file, err := c.store.GetFile(ctx, video.FileID)
	if err != nil {
		return fmt.Errorf("load file %s: %w", video.FileID, err)
	}

	ws, err := workspace.New(c.cfg.Paths.WorkDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			c.logger.Warn("workspace cleanup failed", logging.Error(err))
		}
	}()

	logger := c.logger.With(
		logging.String(logging.FieldVideoID, video.ID),
		logging.String(logging.FieldAction, job.Action),
	)
	logger.Info("retrieving source asset", logging.String("file", file.Path))

	inPath, err := c.retriever.Retrieve(file, ws)
	if err != nil {
		return err
	}

	if video.Duration == 0 {
		if err := c.probeVideo(ctx, video, inPath, logger); err != nil {
			return err
		}
	}

	switch job.Action {
	case ActionPreview:
		return c.processPreview(ctx, job, video, inPath, ws, logger)
	case ActionTimeline:
		return c.processTimeline(ctx, video, inPath, ws, logger)
	default:
		return c.processRendition(ctx, job, video, bucket, file, inPath, ws, logger)
	}
}

// probeVideo fills the video's metadata exactly once. A video whose
// duration is already set is never re-probed.
func (c *Controller) probeVideo(ctx context.Context, video *catalog.Video, inPath string, logger *slog.Logger) error {
	result, err := probe.Inspect(ctx, c.cfg.Encoder.FFprobeBinary, inPath)
	if err != nil {
		return err
	}

	duration := result.DurationMillis()
	format := result.ContainerFormat()
	patch := catalog.VideoPatch{
		Duration: &duration,
		Format:   &format,
	}
	video.Duration = duration
	video.Format = format

	if videos := result.VideoStreams(); len(videos) > 0 {
		v := videos[0]
		aspect := v.AspectRatio()
		frameRate := v.FrameRate()
		frameRateMode := v.FrameRateMode()
		bitRate := v.BitRateValue()
		patch.Width = &v.Width
		patch.Height = &v.Height
		patch.AspectRatio = &aspect
		patch.VideoFormat = &v.CodecName
		patch.VideoFormatProfile = &v.Profile
		patch.VideoFrameRate = &frameRate
		patch.VideoFrameRateMode = &frameRateMode
		patch.VideoBitRate = &bitRate
		video.Width = v.Width
		video.Height = v.Height
		video.AspectRatio = aspect
		video.VideoFormat = v.CodecName
		video.VideoFormatProfile = v.Profile
		video.VideoFrameRate = frameRate
		video.VideoFrameRateMode = frameRateMode
		video.VideoBitRate = bitRate
	}
	if audios := result.AudioStreams(); len(audios) > 0 {
		a := audios[0]
		bitRate := a.BitRateValue()
		patch.AudioFormat = &a.CodecName
		patch.AudioSampleRate = &a.SampleRate
		patch.AudioBitRate = &bitRate
		video.AudioFormat = a.CodecName
		video.AudioSampleRate = a.SampleRate
		video.AudioBitRate = bitRate
	}

	logger.Info("probed source metadata",
		logging.Int64("duration_ms", video.Duration),
		logging.Int("width", video.Width),
		logging.Int("height", video.Height),
		logging.String("format", video.Format),
	)
	return c.store.PatchVideo(ctx, video.ID, patch)
}

// publish sends one rendition state transition; delivery failures are
// logged and swallowed.
func (c *Controller) publish(ctx context.Context, rendition *catalog.Rendition, bucket *catalog.Bucket, file *catalog.File, action string, logger *slog.Logger) {
	msg := realtime.Message{
		ProjectID: "console",
		Events:    realtime.Events(rendition.VideoID, rendition.ID, action),
		Channels:  realtime.Channels(rendition.VideoID, rendition.ID),
		Roles:     realtime.Roles(bucket, file),
		Payload: map[string]any{
			"$id":            rendition.ID,
			"videoId":        rendition.VideoID,
			"profileId":      rendition.ProfileID,
			"name":           rendition.Name,
			"status":         string(rendition.Status),
			"progress":       rendition.Progress,
			"output":         rendition.Output,
			"width":          rendition.Width,
			"height":         rendition.Height,
			"videoBitRate":   rendition.VideoBitRate,
			"audioBitRate":   rendition.AudioBitRate,
			"path":           rendition.Path,
			"targetDuration": rendition.TargetDuration,
		},
	}
	if err := c.publisher.Publish(ctx, msg); err != nil {
		logger.Warn("realtime publish failed",
			logging.String(logging.FieldRenditionID, rendition.ID),
			logging.Error(err),
		)
	}
}

// errorCode maps a failure to its diagnostic code via the ErrorCode
// convention each stage error type implements.
func errorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return "internal"
}

// truncateMessage bounds an error message for the rendition metadata.
func truncateMessage(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > 255 {
		return message[:255]
	}
	return message
}
